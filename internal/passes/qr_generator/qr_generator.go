package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of generated QR images. The PDF
// scales them to the event's cell size.
const DefaultSize = 256

type QRGenerator struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRGenerator() *QRGenerator {
	return &QRGenerator{size: DefaultSize, level: qrcode.Medium}
}

// GeneratePNG encodes the pass code as a PNG QR image. The output depends only on the code.
func (q *QRGenerator) GeneratePNG(code string) ([]byte, error) {
	data, err := qrcode.Encode(code, q.level, q.size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR for %s: %w", code, err)
	}
	return data, nil
}

// Render returns the QR image for the code, ready to be placed on a page.
func (q *QRGenerator) Render(code string) (image.Image, error) {
	data, err := q.GeneratePNG(code)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode QR for %s: %w", code, err)
	}
	return img, nil
}
