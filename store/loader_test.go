package store

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
)

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	path := filepath.Join(t.TempDir(), "questions.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{" Year ", "TOPIC", "Paper", "Question_ID", "PDF Question", "pdf_solution", "Q_Pages", "S_pages"},
		{2019, "Algebra", "calculator", "2019_P2_Q1", "papers/2019_P2.pdf", "solutions/2019_P2_sol.pdf", "2-3", "1"},
		{2021, "Geometry", "non-calculator", "", "", "", "4", ""},
		{"", "", "", "", "", "", "", ""},
		{2021, "", "P1", "orphan", "", "", "", ""},
		{2021, "Geometry", "non-calculator", "", "", "", "5", ""},
	})

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	want := []*Question{
		{ID: "2019_P2_Q1", Year: 2019, Topic: "Algebra", Paper: "calculator",
			QuestionRef: "papers/2019_P2.pdf", SolutionRef: "solutions/2019_P2_sol.pdf",
			QuestionPages: "2-3", SolutionPages: "1"},
		{ID: "2021_non-calculator_Q1", Year: 2021, Topic: "Geometry", Paper: "non-calculator",
			QuestionRef: "papers/2021.pdf", SolutionRef: "solutions/2021_Solutions.pdf",
			QuestionPages: "4"},
		{ID: "2021_non-calculator_Q2", Year: 2021, Topic: "Geometry", Paper: "non-calculator",
			QuestionRef: "papers/2021.pdf", SolutionRef: "solutions/2021_Solutions.pdf",
			QuestionPages: "5"},
	}
	got, err := c.Query(Filter{})
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadCatalog() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalog_CSV(t *testing.T) {
	path := writeFile(t, "questions.csv", "\n"+
		"year,topic,paper,qid\n"+
		"2019,Algebra,calculator,2019_P2_Q1\n"+
		"2020.0,Number,,\n")

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	q, ok := c.Get("2019_P2_Q1")
	require.True(t, ok)
	assert.Equal(t, "Algebra", q.Topic)

	q, ok = c.Get("2020_Q1")
	require.True(t, ok)
	assert.Equal(t, 2020, q.Year)
	assert.Empty(t, q.Paper)
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"Missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.xlsx") }},
		{"UnsupportedFormat", func(t *testing.T) string { return writeFile(t, "questions.txt", "year,topic,paper\n") }},
		{"Empty", func(t *testing.T) string { return writeFile(t, "questions.csv", "\n\n") }},
		{"MissingColumns", func(t *testing.T) string { return writeFile(t, "questions.csv", "year,subject\n2019,Algebra\n") }},
		{"BadYear", func(t *testing.T) string {
			return writeFile(t, "questions.csv", "year,topic,paper\ntwenty,Algebra,P1\n")
		}},
		{"DuplicateIDs", func(t *testing.T) string {
			return writeFile(t, "questions.csv", "year,topic,paper,question_id\n2019,A,P1,x\n2020,B,P1,x\n")
		}},
		{"MalformedCSV", func(t *testing.T) string {
			return writeFile(t, "questions.csv", "year,topic,paper\n2019,\"Alg\"ebra,P1\n")
		}},
		{"NotAnArchive", func(t *testing.T) string { return writeFile(t, "questions.ods", "plain text") }},
		{"CorruptXLSX", func(t *testing.T) string { return writeFile(t, "questions.xlsx", "plain text") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(tt.path(t))
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDataLoadFailed), err.Error())
		})
	}
}

func TestLoadCatalog_MissingColumnsMessage(t *testing.T) {
	path := writeFile(t, "questions.csv", "Year,Subject\n2019,Algebra\n")

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper, topic")
	assert.Contains(t, err.Error(), "Year, Subject")
}

const odsContentXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content
  xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
 <office:body>
  <office:spreadsheet>
   <table:table table:name="Questions">
    <table:table-row>
     <table:table-cell office:value-type="string"><text:p>topic</text:p></table:table-cell>
     <table:table-cell office:value-type="string"><text:p>year</text:p></table:table-cell>
     <table:table-cell office:value-type="string"><text:p>paper</text:p></table:table-cell>
     <table:table-cell office:value-type="string"><text:p>q_pages</text:p></table:table-cell>
     <table:table-cell office:value-type="string"><text:p>question_id</text:p></table:table-cell>
     <table:table-cell table:number-columns-repeated="1019"/>
    </table:table-row>
    <table:table-row>
     <table:table-cell office:value-type="string"><text:p>Alge<text:span>bra</text:span></text:p></table:table-cell>
     <table:table-cell office:value-type="float" office:value="2019"><text:p>2,019</text:p></table:table-cell>
     <table:table-cell office:value-type="string"><text:p>P1</text:p></table:table-cell>
     <table:table-cell/>
     <table:table-cell office:value-type="string"><text:p>2019_P1_Q4</text:p></table:table-cell>
    </table:table-row>
    <table:table-row>
     <table:table-cell office:value-type="string"><text:p>Ratio</text:p></table:table-cell>
     <table:table-cell office:value-type="float" office:value="2020"><text:p>2020</text:p></table:table-cell>
     <table:table-cell table:number-columns-repeated="2"/>
     <table:table-cell office:value-type="string"><text:p>late</text:p></table:table-cell>
    </table:table-row>
    <table:table-row table:number-rows-repeated="1048570">
     <table:table-cell table:number-columns-repeated="1024"/>
    </table:table-row>
   </table:table>
  </office:spreadsheet>
 </office:body>
</office:document-content>`

func writeODS(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.ods")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("mimetype")
	require.NoError(t, err)
	_, err = w.Write([]byte("application/vnd.oasis.opendocument.spreadsheet"))
	require.NoError(t, err)
	w, err = zw.Create("content.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestLoadCatalog_ODS(t *testing.T) {
	c, err := LoadCatalog(writeODS(t, odsContentXML))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	q, ok := c.Get("2019_P1_Q4")
	require.True(t, ok)
	assert.Equal(t, "Algebra", q.Topic)
	assert.Equal(t, 2019, q.Year)

	// Repeated empty cells keep later columns aligned.
	q, ok = c.Get("late")
	require.True(t, ok)
	assert.Equal(t, 2020, q.Year)
	assert.Empty(t, q.Paper)
}

func TestReadODSRows_NoSheets(t *testing.T) {
	path := writeODS(t, `<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"><office:body><office:spreadsheet/></office:body></office:document-content>`)

	_, err := readODSRows(path)
	assert.Error(t, err)
}

func TestLoadCatalog_GeneratedIDsSkipExplicitOnes(t *testing.T) {
	path := writeFile(t, "questions.csv", "year,topic,paper,question_id\n"+
		"2021,Geometry,P1,\n"+
		"2021,Geometry,P1,2021_P1_Q1\n"+
		"2021,Algebra,P1,\n"+
		"2021,Number,P1,2021_P1_Q3\n"+
		"2021,Ratio,P1,\n")

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 5, c.Len())

	all, err := c.Query(Filter{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"2021_P1_Q2", "2021_P1_Q1", "2021_P1_Q4", "2021_P1_Q3", "2021_P1_Q5"}, ids(all)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}
