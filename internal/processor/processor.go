/**
 * Form Extractor for the form extraction worker
 *
 * Runs the fixed-template pipeline against one job directory:
 * - rasterize page one of the input
 * - crop diagram, table and header fields from the page on disk
 * - crop title, rows, row fields and the 12 grid cells in memory
 * - recognize and normalize every field
 * - render debug overlays and assemble the result record
 *
 * Only a missing or unreadable input aborts a job. Unrecognized fields come
 * back as empty strings.
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"time"

	apperrors "github.com/adverant/nexus/formextract-worker/internal/errors"
	"github.com/adverant/nexus/formextract-worker/internal/debugdraw"
	"github.com/adverant/nexus/formextract-worker/internal/geometry"
	"github.com/adverant/nexus/formextract-worker/internal/jobs"
	"github.com/adverant/nexus/formextract-worker/internal/layout"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/ocr"
	"github.com/adverant/nexus/formextract-worker/internal/raster"
)

// rowGroups is the number of cell groups per row (lu, lc, lb)
const rowGroups = 3

// Asset file names
const (
	Page0Asset          = "page0.png"
	DiagramAsset        = "diagram.png"
	TableAsset          = "table.png"
	DebugBBoxAsset      = "debug_bbox.png"
	TableDebugGridAsset = "table_debug_grid.png"
)

// PageRenderer rasterizes the first page of an input file
type PageRenderer interface {
	Render(ctx context.Context, path string) (*raster.Page, error)
}

// Extractor runs the extraction pipeline for one template
type Extractor struct {
	tpl        layout.Template
	recognizer *ocr.Recognizer
	renderer   PageRenderer
	logger     *logging.Logger
}

// NewExtractor wires a template to an OCR engine and a page renderer
func NewExtractor(tpl layout.Template, engine ocr.Engine, renderer PageRenderer, logger *logging.Logger) (*Extractor, error) {
	if engine == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("page renderer is required")
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if len(tpl.GridGroups) != rowGroups {
		return nil, fmt.Errorf("template %s: expected %d grid groups, got %d", tpl.ID, rowGroups, len(tpl.GridGroups))
	}
	if logger == nil {
		logger = logging.NewLogger("extractor")
	}
	return &Extractor{
		tpl:        tpl,
		recognizer: ocr.NewRecognizer(engine, logger),
		renderer:   renderer,
		logger:     logger,
	}, nil
}

// Template returns the layout this extractor applies
func (e *Extractor) Template() layout.Template { return e.tpl }

// Extract processes the job directory and returns the result record.
// All assets are written into dir.
func (e *Extractor) Extract(ctx context.Context, dir *jobs.Dir) (*Result, error) {
	start := time.Now()
	id := dir.ID
	e.logger.Infof("[Job %s] Starting form extraction (template: %s)", id, e.tpl.ID)

	// Step 1: Locate input
	inputPath, err := dir.FindInput()
	if err != nil {
		return nil, err
	}
	e.logger.Infof("[Job %s] Step 1: Located input %s", id, inputPath)

	// Step 2: Rasterize page one
	e.logger.Infof("[Job %s] Step 2: Rasterizing page", id)
	page, err := e.renderer.Render(ctx, inputPath)
	if err != nil {
		if stderrors.Is(err, raster.ErrUnsupported) {
			return nil, apperrors.NewUnsupportedFormatError(id, err.Error())
		}
		return nil, apperrors.NewRasterizeFailedError(id, inputPath, err)
	}
	assets := AssetIndex{
		HeaderCrops: make(map[string]string, len(e.tpl.HeaderFields)),
		RowCrops:    make(map[string]RowAssets, len(e.tpl.Rows)),
	}
	if assets.Page0Image, err = dir.SavePNG(Page0Asset, page.Image); err != nil {
		return nil, err
	}
	e.logger.Infof("[Job %s] Page rasterized: %dx%d (%s)", id, page.Image.Bounds().Dx(), page.Image.Bounds().Dy(), page.MimeType)

	// Step 3: Crop page regions from page0 on disk
	e.logger.Infof("[Job %s] Step 3: Cropping page regions", id)
	page0Path := dir.AssetPath(Page0Asset)
	diagram, err := e.cropAsset(dir, page0Path, e.tpl.Diagram, e.tpl.Padding.Diagram, DiagramAsset, &assets.DiagramImage)
	if err != nil {
		return nil, err
	}
	table, err := e.cropAsset(dir, page0Path, e.tpl.Table, e.tpl.Padding.Table, TableAsset, &assets.TableImage)
	if err != nil {
		return nil, err
	}
	overlay := []debugdraw.Box{
		{Rect: diagram.Rect, Color: debugdraw.Red, Label: "DIAGRAM"},
		{Rect: table.Rect, Color: debugdraw.Blue, Label: "TABLE"},
	}

	headerCrops := make([]geometry.CropResult, len(e.tpl.HeaderFields))
	for i, h := range e.tpl.HeaderFields {
		var uri string
		crop, err := e.cropAsset(dir, page0Path, h.Box, e.tpl.Padding.Header, "header_"+h.Name+".png", &uri)
		if err != nil {
			return nil, err
		}
		headerCrops[i] = crop
		assets.HeaderCrops[h.Name] = uri
		overlay = append(overlay, debugdraw.Box{Rect: crop.Rect, Color: debugdraw.Green, Label: "H_" + h.Name})
	}

	// Step 4: Recognize header fields
	e.logger.Infof("[Job %s] Step 4: Recognizing %d header fields", id, len(headerCrops))
	header := make(map[string]string, len(headerCrops))
	for i, h := range e.tpl.HeaderFields {
		header[h.Name] = e.recognizer.Text(ctx, headerCrops[i].Image, ocr.Printed, "")
	}

	// Step 5: Table title
	e.logger.Infof("[Job %s] Step 5: Recognizing table title", id)
	title := geometry.Crop(table.Image, e.tpl.TableTitle, e.tpl.Padding.Title)
	titleRaw := e.recognizer.Text(ctx, title.Image, ocr.Printed, e.tpl.Allowlists.Title)

	// Step 6: Rows
	e.logger.Infof("[Job %s] Step 6: Extracting %d rows", id, len(e.tpl.Rows))
	rows := make([]RowRecord, 0, len(e.tpl.Rows))
	for i, box := range e.tpl.Rows {
		row, rowAssets, err := e.extractRow(ctx, dir, table.Image, box, i+1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		assets.RowCrops[fmt.Sprintf("row%d", i+1)] = rowAssets
	}

	// Step 7: Debug overlays
	e.logger.Infof("[Job %s] Step 7: Rendering debug overlays", id)
	if assets.DebugBBox, err = dir.SavePNG(DebugBBoxAsset, debugdraw.Page(page.Image, overlay)); err != nil {
		return nil, err
	}
	if assets.TableDebugGrid, err = dir.SavePNG(TableDebugGridAsset, debugdraw.TableGrid(table.Image, e.tpl)); err != nil {
		return nil, err
	}

	// Step 8: Assemble result
	result := &Result{
		Template: e.tpl.ID,
		Header:   header,
		Table:    TableResult{TitleRaw: titleRaw},
		Assets:   assets,
		Rows:     rows,
	}
	e.logger.Infof("[Job %s] Step 8: Extraction complete in %dms (rows=%d, unrecognized cells=%d)",
		id, time.Since(start).Milliseconds(), len(rows), countUnrecognized(rows))
	return result, nil
}

// extractRow crops one row and its fields out of the table image and reads them
func (e *Extractor) extractRow(ctx context.Context, dir *jobs.Dir, table image.Image, box geometry.NormalizedBox, n int) (RowRecord, RowAssets, error) {
	row := geometry.Crop(table, box, e.tpl.Padding.Row)
	cols := e.tpl.Columns
	pad := e.tpl.Padding.Field

	part := geometry.Crop(row.Image, cols.Part.Box(), pad)
	grid := geometry.Crop(row.Image, cols.Grid.Box(), pad)
	date := geometry.Crop(row.Image, cols.Date.Box(), pad)
	confirm := geometry.Crop(row.Image, cols.Confirm.Box(), pad)

	var assets RowAssets
	var err error
	if assets.Part, err = dir.SavePNG(fmt.Sprintf("part_row%d.png", n), part.Image); err != nil {
		return RowRecord{}, assets, err
	}
	if assets.Date, err = dir.SavePNG(fmt.Sprintf("date_row%d.png", n), date.Image); err != nil {
		return RowRecord{}, assets, err
	}
	if assets.Confirmer, err = dir.SavePNG(fmt.Sprintf("confirmer_row%d.png", n), confirm.Image); err != nil {
		return RowRecord{}, assets, err
	}

	record := RowRecord{PartNumber: e.readPartNumber(ctx, part.Image)}

	cellBoxes := e.tpl.CellBoxes()
	cells := make([]string, len(cellBoxes))
	for c, cb := range cellBoxes {
		cell := geometry.Crop(grid.Image, cb, 0)
		cells[c] = e.readNumericCell(ctx, cell.Image)
	}
	groups := splitGroups(cells, rowGroups)
	record.LU, record.LC, record.LB = groups[0], groups[1], groups[2]

	record.InspectionDate, record.DateRaw = e.readDate(ctx, date.Image)
	record.Confirmer = e.readConfirmer(ctx, confirm.Image)

	e.logger.Debug("row extracted",
		"job", dir.ID, "row", n, "part", record.PartNumber,
		"cells", cells, "date", record.InspectionDate, "date_raw", record.DateRaw)
	return record, assets, nil
}

// cropAsset crops box from the image file at src, saves it as name and stores its URI in uri
func (e *Extractor) cropAsset(dir *jobs.Dir, src string, box geometry.NormalizedBox, pad int, name string, uri *string) (geometry.CropResult, error) {
	crop, err := geometry.CropFile(src, box, pad)
	if err != nil {
		return crop, apperrors.NewAssetWriteFailedError(dir.ID, name, err)
	}
	if *uri, err = dir.SavePNG(name, crop.Image); err != nil {
		return crop, err
	}
	return crop, nil
}

func countUnrecognized(rows []RowRecord) int {
	n := 0
	for _, r := range rows {
		for _, c := range r.Cells() {
			if c == "" {
				n++
			}
		}
	}
	return n
}
