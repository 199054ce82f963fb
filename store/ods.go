package store

import (
	"archive/zip"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
)

// OpenDocument spreadsheets repeat empty cells and rows with a count
// attribute, often up to the sheet limits. Expansion is capped.
const (
	maxODSRepeatedCells = 256
	maxODSRepeatedRows  = 1024
)

type odsContent struct {
	Tables []odsTable `xml:"body>spreadsheet>table"`
}

type odsTable struct {
	Name string   `xml:"name,attr"`
	Rows []odsRow `xml:"table-row"`
}

type odsRow struct {
	Repeated int       `xml:"number-rows-repeated,attr"`
	Cells    []odsCell `xml:"table-cell"`
}

type odsCell struct {
	Repeated   int       `xml:"number-columns-repeated,attr"`
	ValueType  string    `xml:"value-type,attr"`
	Value      string    `xml:"value,attr"`
	Paragraphs []odsText `xml:"p"`
}

type odsText struct {
	Chars string    `xml:",chardata"`
	Spans []odsText `xml:"span"`
}

func (t odsText) String() string {
	var b strings.Builder
	b.WriteString(t.Chars)
	for _, s := range t.Spans {
		b.WriteString(s.String())
	}
	return b.String()
}

func (c odsCell) text() string {
	switch c.ValueType {
	case "float", "percentage", "currency":
		if c.Value != "" {
			return c.Value
		}
	}
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "\n")
}

func repeat(n, limit int) int {
	if n <= 1 {
		return 1
	}
	return min(n, limit)
}

// readODSRows returns the cell text of the first sheet in an .ods file.
func readODSRows(path string) ([][]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "not an OpenDocument archive")
	}
	defer zr.Close()

	f, err := zr.Open("content.xml")
	if err != nil {
		return nil, errors.Wrap(err, "content.xml missing")
	}
	defer f.Close()

	var content odsContent
	if err := xml.NewDecoder(f).Decode(&content); err != nil {
		return nil, errors.Wrap(err, "failed to decode content.xml")
	}
	if len(content.Tables) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}

	var rows [][]string
	for _, r := range content.Tables[0].Rows {
		var values []string
		for _, c := range r.Cells {
			v := strings.TrimSpace(c.text())
			for i := 0; i < repeat(c.Repeated, maxODSRepeatedCells); i++ {
				values = append(values, v)
			}
		}
		// Trailing padding cells carry no data.
		for len(values) > 0 && values[len(values)-1] == "" {
			values = values[:len(values)-1]
		}
		if len(values) == 0 {
			rows = append(rows, nil)
			continue
		}
		for i := 0; i < repeat(r.Repeated, maxODSRepeatedRows); i++ {
			rows = append(rows, values)
		}
	}
	return rows, nil
}
