// Package layout places pass codes on fixed-size pages. It knows nothing about
// PDF; the template package turns its pages into drawing commands.
//
// All coordinates are in points with the origin at the top-left corner of the
// page and y growing downwards.
package layout

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// PointsPerCM converts centimetres to PDF points.
const PointsPerCM = 72 / 2.54

// A4 in points, matching gopdf.PageSizeA4.
var A4 = Size{W: 595, H: 842}

var ErrCellTooLarge = errors.New("cell does not fit on the page")

type Size struct {
	W, H float64
}

type Rect struct {
	X, Y, W, H float64
}

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Caption is a line of text. Y is the baseline; with AlignCenter the text is
// centred on the span [X, X+Width].
type Caption struct {
	Text  string
	Bold  bool
	Size  float64
	X, Y  float64
	Width float64
	Align Align
}

// Cell is one placed pass: the QR image rectangle plus its captions.
type Cell struct {
	Index    int
	Code     string
	Rect     Rect
	Captions []Caption
}

type Page struct {
	Number int
	Cells  []Cell
}

// Sheet is the input of a layout run.
type Sheet struct {
	EventName string
	Date      string
	Sponsors  string
	Codes     []string
}

// Engine lays out cells of one size with one policy.
type Engine struct {
	policy Policy
	page   Size
	cell   Size
}

// New validates that a cell of the given size fits on the page under the policy.
func New(policy Policy, page, cell Size) (*Engine, error) {
	if cell.W <= 0 || cell.H <= 0 {
		return nil, fmt.Errorf("%w: cell size must be positive, got %.1fx%.1f", ErrCellTooLarge, cell.W, cell.H)
	}

	e := &Engine{policy: policy, page: page, cell: cell}
	switch policy.Kind {
	case KindMarginFlow:
		if e.perRow() < 1 || policy.YMargin+cell.H > page.H {
			return nil, fmt.Errorf("%w: %.1fx%.1f pt with %s", ErrCellTooLarge, cell.W, cell.H, policy)
		}
	case KindFixedGrid:
		if policy.Cols < 1 || policy.Rows < 1 {
			return nil, fmt.Errorf("invalid grid %dx%d", policy.Cols, policy.Rows)
		}
		xs, ys := e.gridSpacing()
		if xs < 0 || ys < captionBlock {
			return nil, fmt.Errorf("%w: %.1fx%.1f pt with %s leaves %.1f pt for captions, need %.0f", ErrCellTooLarge, cell.W, cell.H, policy, ys, captionBlock)
		}
	default:
		return nil, fmt.Errorf("unknown layout policy %d", policy.Kind)
	}
	return e, nil
}

// PerPage is the number of cells on a full page.
func (e *Engine) PerPage() int {
	if e.policy.Kind == KindFixedGrid {
		return e.policy.Cols * e.policy.Rows
	}
	return e.perRow() * e.rowsPerPage()
}

// Pages returns the pages of the sheet. Iteration is lazy and every new range
// starts again from the first code. An empty sheet has no pages.
func (e *Engine) Pages(sheet Sheet) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		if len(sheet.Codes) == 0 {
			return
		}

		var place func(i int) (Cell, bool)
		if e.policy.Kind == KindFixedGrid {
			place = e.fixedGrid(sheet)
		} else {
			place = e.marginFlow(sheet)
		}

		page := Page{Number: 1}
		for i := range sheet.Codes {
			cell, newPage := place(i)
			if newPage && len(page.Cells) > 0 {
				if !yield(page) {
					return
				}
				page = Page{Number: page.Number + 1}
			}
			page.Cells = append(page.Cells, cell)
		}
		yield(page)
	}
}

func (e *Engine) perRow() int {
	p := e.policy
	return int(math.Floor((e.page.W - 2*p.XMargin) / (e.cell.W + p.CellMargin)))
}

// rowsPerPage follows the marginFlow page-break rule.
func (e *Engine) rowsPerPage() int {
	rows := 1
	for y := e.policy.YMargin; ; rows++ {
		y += e.cell.H + e.policy.RowGap
		if e.breaksAt(y) {
			return rows
		}
	}
}

// breaksAt reports whether a row whose top would be at y starts a new page:
// its bottom edge, measured from the page bottom, falls below YMargin+cell height.
func (e *Engine) breaksAt(y float64) bool {
	return y > e.page.H-e.policy.YMargin-2*e.cell.H
}

func (e *Engine) marginFlow(sheet Sheet) func(int) (Cell, bool) {
	p := e.policy
	perRow := e.perRow()
	x, y := p.XMargin, p.YMargin
	inRow := 0

	return func(i int) (Cell, bool) {
		newPage := false
		if inRow == perRow {
			inRow = 0
			x = p.XMargin
			y += e.cell.H + p.RowGap
			if e.breaksAt(y) {
				y = p.YMargin
				newPage = true
			}
		}

		code := sheet.Codes[i]
		cell := Cell{
			Index: i,
			Code:  code,
			Rect:  Rect{X: x, Y: y, W: e.cell.W, H: e.cell.H},
			Captions: []Caption{
				{Text: code, Bold: true, Size: 8, X: x, Y: y + e.cell.H + 10, Width: e.cell.W, Align: AlignCenter},
			},
		}

		x += e.cell.W + p.CellMargin
		inRow++
		return cell, newPage
	}
}

func (e *Engine) gridSpacing() (float64, float64) {
	p := e.policy
	xs := (e.page.W - float64(p.Cols)*e.cell.W) / float64(p.Cols+1)
	ys := (e.page.H - float64(p.Rows)*e.cell.H) / float64(p.Rows+1)
	return xs, ys
}

// captionBlock is the height the fixed-grid captions take above a cell: the
// lowest baseline sits 41pt above it and carries 9pt text.
const captionBlock = 41.0 + 9

func (e *Engine) fixedGrid(sheet Sheet) func(int) (Cell, bool) {
	p := e.policy
	xs, ys := e.gridSpacing()
	perPage := p.Cols * p.Rows

	return func(i int) (Cell, bool) {
		col := i % p.Cols
		row := (i / p.Cols) % p.Rows
		x := xs + float64(col)*(e.cell.W+xs)
		y := ys + float64(row)*(e.cell.H+ys)

		code := sheet.Codes[i]
		captions := []Caption{
			{Text: "Event: " + sheet.EventName, Bold: true, Size: 10, X: x, Y: y - 5},
			{Text: "Pass ID: " + code, Bold: true, Size: 8, X: x, Y: y - 17},
			{Text: "Date: " + sheet.Date, Size: 9, X: x, Y: y - 29},
		}
		if sheet.Sponsors != "" {
			captions = append(captions, Caption{Text: "Sponsors: " + sheet.Sponsors, Size: 9, X: x, Y: y - 41})
		}

		return Cell{
			Index:    i,
			Code:     code,
			Rect:     Rect{X: x, Y: y, W: e.cell.W, H: e.cell.H},
			Captions: captions,
		}, i > 0 && i%perPage == 0
	}
}
