package layout

import "fmt"

type Kind int

const (
	KindMarginFlow Kind = iota
	KindFixedGrid
)

// Policy selects how cells are arranged. Only the fields of its Kind are used.
type Policy struct {
	Kind Kind

	// margin flow
	XMargin    float64
	YMargin    float64
	CellMargin float64
	RowGap     float64

	// fixed grid
	Cols int
	Rows int
}

// MarginFlow fills rows left to right from the top-left margin, as many cells
// per row as fit.
func MarginFlow() Policy {
	return Policy{Kind: KindMarginFlow, XMargin: 10, YMargin: 10, CellMargin: 10, RowGap: 20}
}

// FixedGrid spaces a cols x rows grid evenly over the page.
func FixedGrid() Policy {
	return Policy{Kind: KindFixedGrid, Cols: 2, Rows: 5}
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "margin-flow", "":
		return MarginFlow(), nil
	case "fixed-grid":
		return FixedGrid(), nil
	}
	return Policy{}, fmt.Errorf("unknown layout %q (want margin-flow or fixed-grid)", name)
}

func (p Policy) String() string {
	switch p.Kind {
	case KindMarginFlow:
		return "margin-flow"
	case KindFixedGrid:
		return fmt.Sprintf("fixed-grid %dx%d", p.Cols, p.Rows)
	}
	return "unknown"
}

// CellFromCM converts a QR cell size given in centimetres to points.
func CellFromCM(w, h float64) Size {
	return Size{W: w * PointsPerCM, H: h * PointsPerCM}
}
