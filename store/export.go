package store

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExportSheetName is the base name of the sheet ExportSelection writes.
const ExportSheetName = "Generated_Questions"

var exportHeader = []any{"Generated Questions", "Question ID", "Year", "Paper", "Topic"}

// ExportSelection writes selection to a new sheet in the workbook at path,
// creating the workbook if needed. Existing sheets are kept; the new sheet
// gets a numeric suffix when the name is taken. It returns the sheet name.
func ExportSelection(path string, selection Selection) (string, error) {
	f, err := openOrCreateWorkbook(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheet := ExportSheetName
	for i := 1; ; i++ {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			return "", errors.Wrap(err, "failed to look up sheet")
		}
		if idx == -1 {
			break
		}
		sheet = ExportSheetName + strconv.Itoa(i)
	}

	if _, err := f.NewSheet(sheet); err != nil {
		return "", errors.Wrapf(err, "failed to add sheet %s", sheet)
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return "", errors.Wrap(err, "failed to write header")
	}
	for i, q := range selection {
		row := []any{q.Title(), q.ID, q.Year, q.Paper, q.Topic}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return "", errors.Wrapf(err, "failed to write row %d", i+2)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrapf(err, "failed to save %s", path)
	}
	return sheet, nil
}

func openOrCreateWorkbook(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %s", path)
	}
	return f, nil
}
