package layout_test

import (
	"fmt"
	"slices"
	"testing"

	"ms-passes/internal/passes/layout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("C%03d", i)
	}
	return out
}

func TestFixedGridPaginatesEveryTenCells(t *testing.T) {
	engine, err := layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 100, H: 100})
	require.NoError(t, err)
	assert.Equal(t, 10, engine.PerPage())

	pages := slices.Collect(engine.Pages(layout.Sheet{EventName: "Expo", Date: "2024-05-01", Codes: codes(13)}))
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Cells, 10)
	assert.Len(t, pages[1].Cells, 3)
	assert.Equal(t, 2, pages[1].Number)

	xs := (595.0 - 2*100) / 3
	ys := (842.0 - 5*100) / 6
	for _, page := range pages {
		for _, cell := range page.Cells {
			i := cell.Index
			col := i % 2
			row := (i / 2) % 5
			assert.InDelta(t, xs+float64(col)*(100+xs), cell.Rect.X, 1e-9, "x of cell %d", i)
			assert.InDelta(t, ys+float64(row)*(100+ys), cell.Rect.Y, 1e-9, "y of cell %d", i)
		}
	}

	// The first cell of the second page is back at the top-left slot.
	assert.Equal(t, "C010", pages[1].Cells[0].Code)
	assert.InDelta(t, xs, pages[1].Cells[0].Rect.X, 1e-9)
	assert.InDelta(t, ys, pages[1].Cells[0].Rect.Y, 1e-9)
}

func TestFixedGridCaptions(t *testing.T) {
	engine, err := layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 100, H: 100})
	require.NoError(t, err)

	sheet := layout.Sheet{EventName: "Expo", Date: "2024-05-01", Sponsors: "Acme", Codes: []string{"AB12"}}
	pages := slices.Collect(engine.Pages(sheet))
	require.Len(t, pages, 1)
	cell := pages[0].Cells[0]

	require.Len(t, cell.Captions, 4)
	assert.Equal(t, "Event: Expo", cell.Captions[0].Text)
	assert.True(t, cell.Captions[0].Bold)
	assert.Equal(t, 10.0, cell.Captions[0].Size)
	assert.Equal(t, "Pass ID: AB12", cell.Captions[1].Text)
	assert.Equal(t, 8.0, cell.Captions[1].Size)
	assert.Equal(t, "Date: 2024-05-01", cell.Captions[2].Text)
	assert.False(t, cell.Captions[2].Bold)
	assert.Equal(t, "Sponsors: Acme", cell.Captions[3].Text)

	for i, offset := range []float64{5, 17, 29, 41} {
		assert.InDelta(t, cell.Rect.Y-offset, cell.Captions[i].Y, 1e-9)
		assert.Equal(t, cell.Rect.X, cell.Captions[i].X)
	}

	sheet.Sponsors = ""
	pages = slices.Collect(engine.Pages(sheet))
	assert.Len(t, pages[0].Cells[0].Captions, 3)
}

func TestFixedGridFullPageHasNoTrailingEmptyPage(t *testing.T) {
	engine, err := layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 100, H: 100})
	require.NoError(t, err)

	pages := slices.Collect(engine.Pages(layout.Sheet{Codes: codes(20)}))
	require.Len(t, pages, 2)
	assert.Len(t, pages[1].Cells, 10)
}

func TestFixedGridRejectsCellsThatLeaveNoRoomForCaptions(t *testing.T) {
	// 5cm cells leave about 22pt between rows, less than the four caption lines need.
	_, err := layout.New(layout.FixedGrid(), layout.A4, layout.CellFromCM(5, 5))
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)

	_, err = layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 100, H: 150})
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)
}

func TestFixedGridCaptionsStayOnPageAndClearOfCells(t *testing.T) {
	cell := layout.CellFromCM(3, 3)
	engine, err := layout.New(layout.FixedGrid(), layout.A4, cell)
	require.NoError(t, err)

	sheet := layout.Sheet{EventName: "Expo", Date: "2024-05-01", Sponsors: "Acme", Codes: codes(10)}
	pages := slices.Collect(engine.Pages(sheet))
	require.Len(t, pages, 1)

	cells := pages[0].Cells
	for _, c := range cells {
		for _, caption := range c.Captions {
			top := caption.Y - caption.Size
			assert.GreaterOrEqual(t, top, 0.0, "caption %q of cell %d leaves the page", caption.Text, c.Index)

			// The cell above in the same column must end before the caption starts.
			if c.Index >= 2 {
				above := cells[c.Index-2].Rect
				assert.Greater(t, top, above.Y+above.H, "caption %q of cell %d overlaps cell %d", caption.Text, c.Index, c.Index-2)
			}
		}
	}
}

func TestMarginFlowRowsAndPages(t *testing.T) {
	cell := layout.CellFromCM(3, 3)
	engine, err := layout.New(layout.MarginFlow(), layout.A4, cell)
	require.NoError(t, err)

	// floor((595 - 20) / (85.04 + 10)) = 6 per row, 7 rows before the page break.
	assert.Equal(t, 42, engine.PerPage())

	pages := slices.Collect(engine.Pages(layout.Sheet{Codes: codes(43)}))
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Cells, 42)
	assert.Len(t, pages[1].Cells, 1)

	first := pages[0].Cells
	assert.InDelta(t, 10, first[0].Rect.X, 1e-9)
	assert.InDelta(t, 10, first[0].Rect.Y, 1e-9)
	assert.InDelta(t, 10+5*(cell.W+10), first[5].Rect.X, 1e-9)
	assert.InDelta(t, 10, first[5].Rect.Y, 1e-9)
	assert.InDelta(t, 10, first[6].Rect.X, 1e-9)
	assert.InDelta(t, 10+cell.H+20, first[6].Rect.Y, 1e-9)

	next := pages[1].Cells[0]
	assert.InDelta(t, 10, next.Rect.X, 1e-9)
	assert.InDelta(t, 10, next.Rect.Y, 1e-9)

	caption := first[0].Captions[0]
	assert.Equal(t, "C000", caption.Text)
	assert.True(t, caption.Bold)
	assert.Equal(t, 8.0, caption.Size)
	assert.Equal(t, layout.AlignCenter, caption.Align)
	assert.InDelta(t, first[0].Rect.Y+cell.H+10, caption.Y, 1e-9)
	assert.InDelta(t, cell.W, caption.Width, 1e-9)
}

func TestPagesIsRestartableAndStopsEarly(t *testing.T) {
	engine, err := layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 100, H: 100})
	require.NoError(t, err)
	sheet := layout.Sheet{Codes: codes(25)}

	first := slices.Collect(engine.Pages(sheet))
	second := slices.Collect(engine.Pages(sheet))
	assert.Equal(t, first, second)

	seen := 0
	for range engine.Pages(sheet) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestEmptySheetHasNoPages(t *testing.T) {
	engine, err := layout.New(layout.MarginFlow(), layout.A4, layout.CellFromCM(3, 3))
	require.NoError(t, err)

	assert.Empty(t, slices.Collect(engine.Pages(layout.Sheet{})))
}

func TestOversizedCellIsRejected(t *testing.T) {
	huge := layout.Size{W: 600, H: 600}

	_, err := layout.New(layout.MarginFlow(), layout.A4, huge)
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)

	_, err = layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 300, H: 100})
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)

	_, err = layout.New(layout.FixedGrid(), layout.A4, layout.Size{W: 0, H: 100})
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)
}

func TestParsePolicy(t *testing.T) {
	p, err := layout.ParsePolicy("fixed-grid")
	require.NoError(t, err)
	assert.Equal(t, layout.KindFixedGrid, p.Kind)

	p, err = layout.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, layout.KindMarginFlow, p.Kind)

	_, err = layout.ParsePolicy("spiral")
	assert.Error(t, err)
}
