package main

import (
	"bytes"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/formextract-worker/internal/layout"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLayoutCommand(t *testing.T) {
	out, err := execute(t, "layout")
	require.NoError(t, err)

	var tpl layout.Template
	require.NoError(t, yaml.Unmarshal([]byte(out), &tpl))

	want, err := layout.Lookup(layout.InnerCurvatureV1)
	require.NoError(t, err)
	assert.Equal(t, want.ID, tpl.ID)
	assert.Equal(t, want.Rows, tpl.Rows)
	assert.Equal(t, want.GridGroups, tpl.GridGroups)
	assert.Equal(t, want.Allowlists.Numeric, tpl.Allowlists.Numeric)
	assert.NoError(t, tpl.Validate())
}

func TestLayoutCommandUnknownTemplate(t *testing.T) {
	_, err := execute(t, "layout", "--template", "outer_curvature_v9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outer_curvature_v9")
	assert.Contains(t, err.Error(), layout.InnerCurvatureV1)
}

func TestCommandArgs(t *testing.T) {
	_, err := execute(t, "extract")
	assert.Error(t, err)

	_, err = execute(t, "submit", "a.pdf", "b.pdf")
	assert.Error(t, err)

	_, err = execute(t, "layout", "extra")
	assert.Error(t, err)
}
