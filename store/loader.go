package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
)

// Column name variants accepted in the header row, compared case-insensitively.
var (
	yearKeys       = []string{"year"}
	topicKeys      = []string{"topic"}
	paperKeys      = []string{"paper"}
	idKeys         = []string{"question_id", "qid", "question id"}
	pdfQuestionKey = []string{"pdf_question", "pdf question"}
	pdfSolutionKey = []string{"pdf_solution", "pdf solution"}
	qPagesKeys     = []string{"q_pages", "qpages", "question_pages", "q_page", "q_page_no", "q_pagenumber"}
	sPagesKeys     = []string{"s_pages", "spages", "solution_pages", "s_page", "s_page_no", "s_pagenumber"}
)

// LoadCatalog reads the question spreadsheet at path.
// Supported formats are .xlsx, .ods and .csv.
func LoadCatalog(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.DataLoad(fmt.Sprintf("spreadsheet not found: %s", path), err)
	}

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	questions, err := parseRows(path, rows)
	if err != nil {
		return nil, err
	}

	catalog, err := NewCatalog(path, questions)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded question catalog", slog.String("source", path), slog.Int("questions", catalog.Len()))
	return catalog, nil
}

func readRows(path string) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return readXLSXRows(path)
	case ".ods":
		rows, err := readODSRows(path)
		if err != nil {
			return nil, apperrors.DataLoad(fmt.Sprintf("failed to read %s", path), err)
		}
		return rows, nil
	case ".csv":
		return readCSVRows(path)
	default:
		return nil, apperrors.DataLoadf("unsupported spreadsheet format %q", ext)
	}
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.DataLoad(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.DataLoadf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.DataLoad(fmt.Sprintf("failed to read sheet %s", sheets[0]), err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.DataLoad(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.DataLoad(fmt.Sprintf("malformed csv %s", path), err)
	}
	return rows, nil
}

// columns maps logical fields to header indexes; -1 means absent.
type columns struct {
	year, topic, paper           int
	id, pdfQuestion, pdfSolution int
	questionPages, solutionPages int
}

func findColumn(header []string, keys []string) int {
	for _, key := range keys {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), key) {
				return i
			}
		}
	}
	return -1
}

func resolveColumns(source string, header []string) (columns, error) {
	cols := columns{
		year:          findColumn(header, yearKeys),
		topic:         findColumn(header, topicKeys),
		paper:         findColumn(header, paperKeys),
		id:            findColumn(header, idKeys),
		pdfQuestion:   findColumn(header, pdfQuestionKey),
		pdfSolution:   findColumn(header, pdfSolutionKey),
		questionPages: findColumn(header, qPagesKeys),
		solutionPages: findColumn(header, sPagesKeys),
	}

	var missing []string
	for name, idx := range map[string]int{"year": cols.year, "topic": cols.topic, "paper": cols.paper} {
		if idx < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return cols, apperrors.DataLoadf("missing required column(s) in %s: %s (found: %s)",
			source, strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseYear(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	// Spreadsheets frequently store years as floats, e.g. "2019.0".
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return int(f), nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRows(source string, rows [][]string) ([]*Question, error) {
	headerIdx := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, apperrors.DataLoadf("%s is empty", source)
	}

	cols, err := resolveColumns(source, rows[headerIdx])
	if err != nil {
		return nil, err
	}

	// Explicit ids are reserved first so generated ones never collide with them.
	taken := map[string]bool{}
	for _, row := range rows[headerIdx+1:] {
		if id := cell(row, cols.id); id != "" {
			taken[id] = true
		}
	}

	var questions []*Question
	// Rows without an explicit id get "{year}_{paper}_Q{n}", numbered per paper
	// and skipping numbers already in use.
	generated := map[string]int{}
	for i, row := range rows[headerIdx+1:] {
		line := headerIdx + i + 2
		yearRaw, topic := cell(row, cols.year), cell(row, cols.topic)
		if yearRaw == "" || topic == "" {
			continue
		}
		year, err := parseYear(yearRaw)
		if err != nil {
			return nil, apperrors.DataLoad(fmt.Sprintf("%s row %d", source, line), err)
		}
		paper := cell(row, cols.paper)

		q := &Question{
			ID:            cell(row, cols.id),
			Year:          year,
			Topic:         topic,
			Paper:         paper,
			QuestionRef:   cell(row, cols.pdfQuestion),
			SolutionRef:   cell(row, cols.pdfSolution),
			QuestionPages: cell(row, cols.questionPages),
			SolutionPages: cell(row, cols.solutionPages),
		}
		if q.ID == "" {
			base := strings.Trim(fmt.Sprintf("%d_%s", year, paper), "_")
			for q.ID == "" || taken[q.ID] {
				generated[base]++
				q.ID = fmt.Sprintf("%s_Q%d", base, generated[base])
			}
			taken[q.ID] = true
		}
		if q.QuestionRef == "" {
			q.QuestionRef = fmt.Sprintf("papers/%d.pdf", year)
		}
		if q.SolutionRef == "" {
			q.SolutionRef = fmt.Sprintf("solutions/%d_Solutions.pdf", year)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
