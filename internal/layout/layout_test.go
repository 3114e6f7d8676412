package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredTemplatesAreValid(t *testing.T) {
	for _, id := range IDs() {
		tpl, err := Lookup(id)
		require.NoError(t, err)
		assert.NoError(t, tpl.Validate(), id)
	}
}

func TestInnerCurvatureV1(t *testing.T) {
	tpl, err := Lookup(InnerCurvatureV1)
	require.NoError(t, err)

	names := make([]string, 0, len(tpl.HeaderFields))
	for _, h := range tpl.HeaderFields {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"construction_number", "orderer", "construction_name", "project_title"}, names)
	assert.Len(t, tpl.Rows, 3)
	assert.Len(t, tpl.CellBoxes(), 12)
	assert.Equal(t, 4, tpl.GroupSize())

	top, bottom := tpl.RowSpan()
	assert.Equal(t, 0.44, top)
	assert.Equal(t, 0.90, bottom)

	// column bands tile the row
	assert.Equal(t, tpl.Columns.Part.Right, tpl.Columns.Grid.Left)
	assert.Equal(t, tpl.Columns.Grid.Right, tpl.Columns.Date.Left)
	assert.Equal(t, tpl.Columns.Date.Right, tpl.Columns.Confirm.Left)
}

func TestLookupReturnsCopies(t *testing.T) {
	a, err := Lookup(InnerCurvatureV1)
	require.NoError(t, err)
	a.Rows[0].Top = 0.99
	a.HeaderFields[0].Name = "mutated"

	b, err := Lookup(InnerCurvatureV1)
	require.NoError(t, err)
	assert.Equal(t, 0.44, b.Rows[0].Top)
	assert.Equal(t, "construction_number", b.HeaderFields[0].Name)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("inner_curvature_v0")
	assert.ErrorContains(t, err, "unknown template")
}
