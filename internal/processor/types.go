/**
 * Result record types
 *
 * The JSON shape is the contract with whatever serves the job directory:
 * snake_case keys, every grid cell present (empty string = unrecognized).
 */

package processor

// Result is the structured extraction result for one document
type Result struct {
	Template string            `json:"template"`
	Header   map[string]string `json:"header"`
	Table    TableResult       `json:"table"`
	Assets   AssetIndex        `json:"assets"`
	Rows     []RowRecord       `json:"rows"`
}

// TableResult holds table-level fields
type TableResult struct {
	TitleRaw string `json:"title_raw"`
}

// AssetIndex maps logical asset names to retrieval paths
type AssetIndex struct {
	Page0Image     string               `json:"page0_image"`
	DiagramImage   string               `json:"diagram_image"`
	TableImage     string               `json:"table_image"`
	DebugBBox      string               `json:"debug_bbox"`
	TableDebugGrid string               `json:"table_debug_grid"`
	HeaderCrops    map[string]string    `json:"header_crops"`
	RowCrops       map[string]RowAssets `json:"row_crops"`
}

// RowAssets are the saved crops of one table row
type RowAssets struct {
	Part      string `json:"part"`
	Date      string `json:"date"`
	Confirmer string `json:"confirmer"`
}

// RowRecord is one measurement row. LU, LC and LB always hold four entries each.
type RowRecord struct {
	PartNumber     string   `json:"part_number"`
	LU             []string `json:"lu"`
	LC             []string `json:"lc"`
	LB             []string `json:"lb"`
	InspectionDate string   `json:"inspection_date"`
	DateRaw        string   `json:"_date_raw"`
	Confirmer      string   `json:"confirmer"`
}

// Cells returns lu+lc+lb in reading order
func (r RowRecord) Cells() []string {
	cells := make([]string, 0, len(r.LU)+len(r.LC)+len(r.LB))
	cells = append(cells, r.LU...)
	cells = append(cells, r.LC...)
	return append(cells, r.LB...)
}

// ProcessResult summarizes one processed job for the queue layer
type ProcessResult struct {
	JobID             string
	Template          string
	ResultPath        string
	RowsExtracted     int
	UnrecognizedCells int
	ProcessingTimeMs  int64
}
