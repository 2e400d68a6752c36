// Package labels renders printable asset tags: one QR code per asset
// with its name and serial number, laid out in a grid on A4 pages.
package labels

import (
	"bytes"
	"errors"
	"fmt"

	"Gin_postgres_redis_equipment_tool/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrNoAssets = errors.New("no assets to label")

type Layout struct {
	Cols       int
	Rows       int
	MarginTop  float64 // mm
	MarginLeft float64 // mm
	GapX       float64
	GapY       float64
	// Prefix is prepended to the asset id in the QR payload, e.g. a
	// frontend URL that opens the asset page.
	Prefix string
}

// DefaultLayout fits 3x8 labels on an A4 sheet.
var DefaultLayout = Layout{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 8, GapX: 3, GapY: 2}

func (l Layout) normalize() Layout {
	if l.Cols <= 0 {
		l.Cols = DefaultLayout.Cols
	}
	if l.Rows <= 0 {
		l.Rows = DefaultLayout.Rows
	}
	return l
}

// Payload is the text encoded in an asset's QR code.
func (l Layout) Payload(m *models.Materiel) string { return l.Prefix + m.ID }

// Render returns the PDF bytes for the given assets, in order.
func Render(assets []models.Materiel, l Layout) ([]byte, error) {
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}
	l = l.normalize()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	labelW := (pageW - 2*l.MarginLeft - float64(l.Cols-1)*l.GapX) / float64(l.Cols)
	labelH := (pageH - 2*l.MarginTop - float64(l.Rows-1)*l.GapY) / float64(l.Rows)
	perPage := l.Cols * l.Rows

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	for i := range assets {
		m := &assets[i]
		if i%perPage == 0 {
			pdf.AddPage()
		}
		slot := i % perPage
		x := l.MarginLeft + float64(slot%l.Cols)*(labelW+l.GapX)
		y := l.MarginTop + float64(slot/l.Cols)*(labelH+l.GapY)

		png, err := qrcode.Encode(l.Payload(m), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr for %s: %w", m.ID, err)
		}
		name := "qr_" + m.ID
		pdf.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(png))

		qr := labelH - 2
		if qr > labelW/2 {
			qr = labelW / 2
		}
		pdf.ImageOptions(name, x+1, y+1, qr, qr, false, imgOpts, 0, "")

		textX := x + qr + 2
		textW := labelW - qr - 3
		pdf.SetXY(textX, y+2)
		pdf.SetFontSize(8)
		pdf.MultiCell(textW, 3.5, tr(m.Name), "", "L", false)
		pdf.SetX(textX)
		pdf.SetFontSize(6)
		if s := m.Serial(); s != "" {
			pdf.CellFormat(textW, 3, tr("S/N "+s), "", 2, "L", false, 0, "")
		}
		pdf.SetX(textX)
		pdf.CellFormat(textW, 3, tr(m.Type+" / "+m.Location), "", 2, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
