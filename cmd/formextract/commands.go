package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/formextract-worker/internal/app"
	"github.com/adverant/nexus/formextract-worker/internal/config"
	"github.com/adverant/nexus/formextract-worker/internal/jobs"
	"github.com/adverant/nexus/formextract-worker/internal/layout"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "formextract",
		Short:         "Extract inspection-sheet fields from scanned forms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExtractCommand(), newSubmitCommand(), newLayoutCommand())
	return root
}

// loadApp reads .env and the environment, then builds the pipeline
func loadApp() (*app.App, error) {
	_ = godotenv.Load(".env")
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func newExtractCommand() *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "extract <jobDir>",
		Short: "Run the extraction pipeline on one job directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dirPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if jobID == "" {
				jobID = filepath.Base(dirPath)
			}
			dir := jobs.OpenDir(dirPath, jobID, a.Config.AssetURLPrefix)

			if _, err := a.Service.ProcessDir(cmd.Context(), dir); err != nil {
				return err
			}
			var result processor.Result
			if err := dir.ReadResult(&result); err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id used in asset URIs (default: directory name)")
	return cmd
}

func newSubmitCommand() *cobra.Command {
	var (
		enqueue bool
		backend string
	)
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Create a job directory from a file and optionally enqueue it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dir, err := a.Store.Create(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			if enqueue {
				if backend == "" {
					backend = a.Config.QueueBackend
				}
				if err := a.Enqueue(cmd.Context(), backend, dir.ID); err != nil {
					return fmt.Errorf("job %s created but not enqueued: %w", dir.ID, err)
				}
			}
			return writeJSON(cmd, map[string]interface{}{
				"jobId":    dir.ID,
				"path":     dir.Path,
				"enqueued": enqueue,
			})
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "push the job onto the worker queue")
	cmd.Flags().StringVar(&backend, "backend", "", "queue backend: redis or asynq (default: QUEUE_BACKEND)")
	return cmd
}

func newLayoutCommand() *cobra.Command {
	var templateID string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print a template's normalized layout as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tpl, err := layout.Lookup(templateID)
			if err != nil {
				return fmt.Errorf("%w (known: %v)", err, layout.IDs())
			}
			out, err := yaml.Marshal(tpl)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&templateID, "template", layout.InnerCurvatureV1, "template id")
	return cmd
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
