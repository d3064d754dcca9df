package template

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"iter"
	"os"
	"path/filepath"

	"ms-passes/internal/passes/layout"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "sheet"

// ascent approximates the distance from the top of a text line to its baseline, as a share of the font size.
const ascent = 0.8

// ImageRenderer turns a pass code into its scannable image.
type ImageRenderer interface {
	Render(code string) (image.Image, error)
}

type Fonts struct {
	Regular []byte
	Bold    []byte
}

// DefaultFonts are the Go fonts bundled with golang.org/x/image.
func DefaultFonts() Fonts {
	return Fonts{Regular: goregular.TTF, Bold: gobold.TTF}
}

// LoadFonts reads DejaVuSans.ttf and DejaVuSans-Bold.ttf from dir.
func LoadFonts(dir string) (Fonts, error) {
	regular, err := os.ReadFile(filepath.Join(dir, "DejaVuSans.ttf"))
	if err != nil {
		return Fonts{}, fmt.Errorf("failed to load font: %w", err)
	}
	bold, err := os.ReadFile(filepath.Join(dir, "DejaVuSans-Bold.ttf"))
	if err != nil {
		return Fonts{}, fmt.Errorf("failed to load bold font: %w", err)
	}
	return Fonts{Regular: regular, Bold: bold}, nil
}

type SheetPDFGenerator struct {
	images ImageRenderer
	fonts  Fonts
}

func NewSheetPDFGenerator(images ImageRenderer, fonts Fonts) *SheetPDFGenerator {
	return &SheetPDFGenerator{images: images, fonts: fonts}
}

// Generate renders one PDF page per layout page and returns the finished document.
// A sheet without pages becomes a single blank page.
func (g *SheetPDFGenerator) Generate(pages iter.Seq[layout.Page]) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})

	if err := pdf.AddTTFFontData(fontFamily, g.fonts.Regular); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.AddTTFFontDataWithOption(fontFamily, g.fonts.Bold, gopdf.TtfOption{Style: gopdf.Bold}); err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}

	count := 0
	for page := range pages {
		pdf.AddPage()
		for _, cell := range page.Cells {
			if err := g.drawCell(pdf, cell); err != nil {
				return nil, fmt.Errorf("page %d: %w", page.Number, err)
			}
		}
		count++
	}
	// An event without passes still prints, as one blank page.
	if count == 0 {
		pdf.AddPage()
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *SheetPDFGenerator) drawCell(pdf *gopdf.GoPdf, cell layout.Cell) error {
	img, err := g.images.Render(cell.Code)
	if err != nil {
		return fmt.Errorf("failed to render QR for %s: %w", cell.Code, err)
	}

	r := cell.Rect
	if err := pdf.ImageFrom(img, r.X, r.Y, &gopdf.Rect{W: r.W, H: r.H}); err != nil {
		return fmt.Errorf("failed to draw QR for %s: %w", cell.Code, err)
	}

	for _, caption := range cell.Captions {
		if err := drawCaption(pdf, caption); err != nil {
			return fmt.Errorf("failed to draw caption for %s: %w", cell.Code, err)
		}
	}
	return nil
}

func drawCaption(pdf *gopdf.GoPdf, caption layout.Caption) error {
	style := ""
	if caption.Bold {
		style = "B"
	}
	if err := pdf.SetFont(fontFamily, style, caption.Size); err != nil {
		return err
	}

	pdf.SetXY(caption.X, caption.Y-caption.Size*ascent)
	if caption.Align == layout.AlignCenter {
		return pdf.CellWithOption(&gopdf.Rect{W: caption.Width, H: caption.Size}, caption.Text, gopdf.CellOption{Align: gopdf.Center | gopdf.Top})
	}
	return pdf.Cell(nil, caption.Text)
}

// Write renders the sheet and copies it to w. Nothing is written when rendering fails.
func (g *SheetPDFGenerator) Write(pages iter.Seq[layout.Page], w io.Writer) error {
	doc, err := g.Generate(pages)
	if err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("failed to write sheet: %w", err)
	}
	return nil
}

// WriteFile renders the sheet to path. The file only appears once it is complete.
func (g *SheetPDFGenerator) WriteFile(pages iter.Seq[layout.Page], path string) error {
	doc, err := g.Generate(pages)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".passes-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write sheet: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move sheet into place: %w", err)
	}
	return nil
}
