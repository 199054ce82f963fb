package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

const (
	coverTitle   = "Mint Maths Practice Set"
	bannerHeight = 28.0 // mm
	listLeft     = 20.0
	lineHeight   = 6.5
)

// mint is the banner and heading colour (#379683).
var mint = struct{ r, g, b int }{0x37, 0x96, 0x83}

// renderCover draws an A4 cover listing the titles. Long lists continue on
// further pages, each with the banner repeated.
func renderCover(titles []string, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(generatedAt)
	pdf.SetTitle(coverTitle, true)
	pdf.SetTopMargin(bannerHeight + 10)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	pdf.SetHeaderFuncMode(func() {
		pdf.SetFillColor(mint.r, mint.g, mint.b)
		pdf.Rect(0, 0, pageWidth, bannerHeight, "F")
	}, true)

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(0, 9)
	pdf.CellFormat(pageWidth, 10, coverTitle, "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(128, 128, 128)
	pdf.SetXY(0, bannerHeight+4)
	pdf.CellFormat(pageWidth, 6, "Generated on "+generatedAt.Format("02 Jan 2006, 15:04"), "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(mint.r, mint.g, mint.b)
	pdf.SetXY(listLeft-6, bannerHeight+16)
	pdf.CellFormat(0, 8, "Included Questions:", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	for i, title := range titles {
		pdf.SetX(listLeft)
		pdf.CellFormat(0, lineHeight, tr(fmt.Sprintf("%d. %s", i+1, title)), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to render cover page")
	}
	return buf.Bytes(), nil
}
