// Package layout holds the fixed crop tables for each supported form template.
//
// Boxes are normalized to the image they are applied to:
//   - page boxes (headers, diagram, table) to the rasterized first page
//   - the table title and rows to the table crop
//   - column bands to a single row crop
//
// Templates are immutable; Lookup hands out deep copies.
package layout

import (
	"fmt"
	"sort"

	"github.com/adverant/nexus/formextract-worker/internal/geometry"
)

// InnerCurvatureV1 is the inner-curvature inspection sheet, first revision
const InnerCurvatureV1 = "inner_curvature_v1"

// Band is a horizontal column range inside a row
type Band struct {
	Left  float64 `yaml:"left"`
	Right float64 `yaml:"right"`
}

// Box spans the band over the full height of its row
func (b Band) Box() geometry.NormalizedBox {
	return geometry.Box(b.Left, 0, b.Right, 1)
}

// Span spans the band over [top, bottom] of the table, for overlays
func (b Band) Span(top, bottom float64) geometry.NormalizedBox {
	return geometry.Box(b.Left, top, b.Right, bottom)
}

// HeaderField is a named printed field on the page
type HeaderField struct {
	Name string                 `yaml:"name"`
	Box  geometry.NormalizedBox `yaml:"box"`
}

// Columns groups the bands of one table row
type Columns struct {
	Part    Band `yaml:"part"`
	Grid    Band `yaml:"grid"`
	Date    Band `yaml:"date"`
	Confirm Band `yaml:"confirm"`
}

// Padding in pixels applied when cropping each region
type Padding struct {
	Diagram int `yaml:"diagram"`
	Table   int `yaml:"table"`
	Header  int `yaml:"header"`
	Title   int `yaml:"title"`
	Row     int `yaml:"row"`
	Field   int `yaml:"field"`
}

// Allowlists restrict the characters the OCR engine may return per field.
// An empty allowlist means unrestricted.
type Allowlists struct {
	Part    string `yaml:"part"`
	Numeric string `yaml:"numeric"`
	Date    string `yaml:"date"`
	Title   string `yaml:"title"`
}

// Template is the complete crop table for one document layout
type Template struct {
	ID           string                   `yaml:"id"`
	HeaderFields []HeaderField            `yaml:"header_fields"`
	Diagram      geometry.NormalizedBox   `yaml:"diagram"`
	Table        geometry.NormalizedBox   `yaml:"table"`
	TableTitle   geometry.NormalizedBox   `yaml:"table_title"`
	Rows         []geometry.NormalizedBox `yaml:"rows"`
	Columns      Columns                  `yaml:"columns"`
	GridCells    int                      `yaml:"grid_cells"`
	GridGroups   []string                 `yaml:"grid_groups"`
	Padding      Padding                  `yaml:"padding"`
	Allowlists   Allowlists               `yaml:"allowlists"`
}

var templates = map[string]Template{
	InnerCurvatureV1: {
		ID: InnerCurvatureV1,
		HeaderFields: []HeaderField{
			{Name: "construction_number", Box: geometry.Box(0.135, 0.112, 0.395, 0.145)},
			{Name: "orderer", Box: geometry.Box(0.135, 0.158, 0.395, 0.185)},
			{Name: "construction_name", Box: geometry.Box(0.135, 0.200, 0.395, 0.230)},
			{Name: "project_title", Box: geometry.Box(0.405, 0.180, 0.790, 0.230)},
		},
		Diagram:    geometry.Box(0.06, 0.26, 0.94, 0.62),
		Table:      geometry.Box(0.06, 0.67, 0.94, 0.95),
		TableTitle: geometry.Box(0.085, 0.12, 0.81, 0.20),
		Rows: []geometry.NormalizedBox{
			geometry.Box(0.00, 0.44, 1.00, 0.59),
			geometry.Box(0.00, 0.59, 1.00, 0.75),
			geometry.Box(0.00, 0.75, 1.00, 0.90),
		},
		Columns: Columns{
			Part:    Band{Left: 0.00, Right: 0.086},
			Grid:    Band{Left: 0.086, Right: 0.81},
			Date:    Band{Left: 0.81, Right: 0.91},
			Confirm: Band{Left: 0.91, Right: 1.00},
		},
		GridCells:  12,
		GridGroups: []string{"lu", "lc", "lb"},
		Padding: Padding{
			Diagram: 20,
			Table:   10,
			Header:  10,
			Title:   4,
			Row:     0,
			Field:   2,
		},
		Allowlists: Allowlists{
			Part:    "DB0123456789-",
			Numeric: "+-0123456789.Iil|",
			Date:    "0123456789/",
			Title:   "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+-/()._ 曲率R",
		},
	},
}

// Lookup returns a copy of the template registered under id
func Lookup(id string) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q", id)
	}
	return t.clone(), nil
}

// IDs lists registered template ids in sorted order
func IDs() []string {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CellBoxes slices the grid crop into GridCells equal-width columns, left to right
func (t Template) CellBoxes() []geometry.NormalizedBox {
	return geometry.Slices(0, 1, t.GridCells)
}

// GroupSize is the number of grid cells per named group (lu, lc, lb)
func (t Template) GroupSize() int {
	if len(t.GridGroups) == 0 {
		return t.GridCells
	}
	return t.GridCells / len(t.GridGroups)
}

// RowSpan returns the vertical extent covered by all rows, in table coordinates
func (t Template) RowSpan() (top, bottom float64) {
	if len(t.Rows) == 0 {
		return 0, 0
	}
	top, bottom = t.Rows[0].Top, t.Rows[0].Bottom
	for _, r := range t.Rows[1:] {
		top = min(top, r.Top)
		bottom = max(bottom, r.Bottom)
	}
	return top, bottom
}

// Validate checks every box and the grid grouping
func (t Template) Validate() error {
	boxes := []geometry.NormalizedBox{t.Diagram, t.Table, t.TableTitle}
	for _, h := range t.HeaderFields {
		boxes = append(boxes, h.Box)
	}
	boxes = append(boxes, t.Rows...)
	for _, b := range []Band{t.Columns.Part, t.Columns.Grid, t.Columns.Date, t.Columns.Confirm} {
		boxes = append(boxes, b.Box())
	}
	for _, b := range boxes {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	if t.GridCells <= 0 || (len(t.GridGroups) > 0 && t.GridCells%len(t.GridGroups) != 0) {
		return fmt.Errorf("template %s: %d grid cells cannot be split into %d groups", t.ID, t.GridCells, len(t.GridGroups))
	}
	return nil
}

func (t Template) clone() Template {
	c := t
	c.HeaderFields = append([]HeaderField(nil), t.HeaderFields...)
	c.Rows = append([]geometry.NormalizedBox(nil), t.Rows...)
	c.GridGroups = append([]string(nil), t.GridGroups...)
	return c
}
