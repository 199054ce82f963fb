package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hrygo/mintmaths/store"
)

const testCatalogCSV = `year,topic,paper,question_id,q_pages
2021,Geometry,P1,2021_P1_Q1,1
2021,Geometry,P1,2021_P1_Q2,2
2021,Geometry,P1,2021_P1_Q3,3
2019,Algebra,P2,2019_P2_Q4,1
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogCSV), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestNewProfile(t *testing.T) {
	catalog := writeCatalog(t)
	data := t.TempDir()
	t.Setenv("MINTMATHS_CATALOG", catalog)
	t.Setenv("MINTMATHS_SOURCE_ROOT", "")
	t.Setenv("MINTMATHS_CACHE_CAPACITY", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerPersistentFlags(flags)
	v := viper.New()
	bindConfig(v, flags)
	require.NoError(t, flags.Parse([]string{"--mode", "prod", "--data", data, "--driver", "sqlite"}))

	p, err := newProfile(v)
	require.NoError(t, err)
	assert.Equal(t, "prod", p.Mode)
	assert.Equal(t, catalog, p.CatalogPath)
	assert.Equal(t, filepath.Dir(catalog), p.SourceRoot)
	assert.Equal(t, filepath.Join(data, "mintmaths_prod.db"), p.DSN)
	assert.Equal(t, 7, p.CacheCapacity)
	assert.NotEmpty(t, p.Version)
}

func TestNewProfile_UnknownDriver(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerPersistentFlags(flags)
	v := viper.New()
	bindConfig(v, flags)
	require.NoError(t, flags.Parse([]string{"--driver", "mysql", "--data", t.TempDir()}))

	_, err := newProfile(v)
	assert.Error(t, err)
}

func TestFacetsCmd(t *testing.T) {
	out, err := run(t, "facets", "--catalog", writeCatalog(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Questions: 4")
	assert.Contains(t, out, "Years:     2019, 2021")
	assert.Contains(t, out, "Papers:    P1, P2")
	assert.Contains(t, out, "Topics:    Algebra, Geometry")
}

func TestFacetsCmd_MissingCatalog(t *testing.T) {
	_, err := run(t, "facets", "--catalog", filepath.Join(t.TempDir(), "missing.ods"))
	assert.ErrorContains(t, err, "spreadsheet not found")
}

func TestGenerateCmd(t *testing.T) {
	catalog := writeCatalog(t)
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "set.pdf")
	xlsxPath := filepath.Join(dir, "sets.xlsx")

	out, err := run(t, "generate", "--catalog", catalog, "--data", dir,
		"--topic", "geometry", "--count", "2", "--out", pdfPath, "--export", xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Selected questions:")
	assert.Contains(t, out, "2021 P1 - Geometry")
	assert.Contains(t, out, "Saved "+pdfPath)
	assert.Contains(t, out, `sheet "Generated_Questions"`)

	body, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Generated_Questions")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestGenerateCmd_TooManyQuestions(t *testing.T) {
	_, err := run(t, "generate", "--catalog", writeCatalog(t), "--data", t.TempDir(),
		"--year", "2019", "--count", "2", "--out", filepath.Join(t.TempDir(), "x.pdf"))
	assert.ErrorContains(t, err, "only 1 match")
}

func TestGenerateCmd_Fresh(t *testing.T) {
	catalog := writeCatalog(t)
	data := t.TempDir()

	_, err := run(t, "generate", "--catalog", catalog, "--data", data, "--fresh",
		"--count", "3", "--out", filepath.Join(data, "a.pdf"))
	require.NoError(t, err)

	history, err := store.OpenUsageHistory(filepath.Join(data, historyFileName))
	require.NoError(t, err)
	assert.Equal(t, 3, history.Len())
}

func TestRebuildCmd_Replace(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "rebuild", "--catalog", writeCatalog(t), "--data", dir,
		"--year", "2021", "--ids", "2021_P1_Q1,2021_P1_Q2", "--replace", "1",
		"--out", filepath.Join(dir, "r.pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Q3 - 2021 P1 - Geometry")
	assert.Contains(t, out, "2. Q2 - 2021 P1 - Geometry")
}

func TestCacheCmd(t *testing.T) {
	catalog := writeCatalog(t)
	data := t.TempDir()

	_, err := run(t, "cache", "stats", "--catalog", catalog, "--data", data)
	assert.ErrorContains(t, err, "no persistent document store")

	_, err = run(t, "generate", "--catalog", catalog, "--data", data, "--driver", "sqlite",
		"--count", "1", "--out", filepath.Join(data, "a.pdf"))
	require.NoError(t, err)

	out, err := run(t, "cache", "stats", "--catalog", catalog, "--data", data, "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 1")

	out, err = run(t, "cache", "prune", "--catalog", catalog, "--data", data, "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 documents")
}

func samplePDF(t *testing.T, path string, pages int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 16)
	for i := 1; i <= pages; i++ {
		doc.AddPage()
		doc.Cell(40, 10, fmt.Sprintf("page %d", i))
	}
	require.NoError(t, doc.OutputFileAndClose(path))
}

func pageCount(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(f, conf)
	require.NoError(t, err)
	return n
}

func TestRebuildCmd_SolutionsCachedApart(t *testing.T) {
	root := t.TempDir()
	samplePDF(t, filepath.Join(root, "papers", "2021.pdf"), 3)
	samplePDF(t, filepath.Join(root, "solutions", "2021_Solutions.pdf"), 3)
	catalog := filepath.Join(root, "questions.csv")
	require.NoError(t, os.WriteFile(catalog, []byte("year,topic,paper,question_id,q_pages,s_pages\n"+
		"2021,Geometry,P1,2021_P1_Q1,1-2,1-3\n"), 0o644))
	data := t.TempDir()

	rebuild := func(out string, extra ...string) int {
		args := append([]string{"rebuild", "--catalog", catalog, "--data", data, "--driver", "sqlite",
			"--ids", "2021_P1_Q1", "--out", out}, extra...)
		_, err := run(t, args...)
		require.NoError(t, err)
		return pageCount(t, out)
	}

	// Cover, two question pages and three solution pages.
	assert.Equal(t, 6, rebuild(filepath.Join(data, "with.pdf")))
	// Same ids against the same store: the stored document with solutions must not be reused.
	assert.Equal(t, 3, rebuild(filepath.Join(data, "without.pdf"), "--no-solutions"))
	assert.Equal(t, 6, rebuild(filepath.Join(data, "again.pdf")))

	out, err := run(t, "cache", "stats", "--catalog", catalog, "--data", data, "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 2")
}

func TestRebuildCmd_SolutionsFromEnv(t *testing.T) {
	root := t.TempDir()
	samplePDF(t, filepath.Join(root, "papers", "2021.pdf"), 2)
	samplePDF(t, filepath.Join(root, "solutions", "2021_Solutions.pdf"), 2)
	catalog := filepath.Join(root, "questions.csv")
	require.NoError(t, os.WriteFile(catalog, []byte("year,topic,paper,question_id,q_pages,s_pages\n"+
		"2021,Geometry,P1,2021_P1_Q1,1,1-2\n"), 0o644))
	t.Setenv("MINTMATHS_INCLUDE_SOLUTIONS", "false")

	out := filepath.Join(root, "a.pdf")
	_, err := run(t, "rebuild", "--catalog", catalog, "--data", root, "--ids", "2021_P1_Q1", "--out", out)
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out))

	// An explicit flag wins over the environment.
	out = filepath.Join(root, "b.pdf")
	_, err = run(t, "rebuild", "--catalog", catalog, "--data", root, "--ids", "2021_P1_Q1", "--out", out, "--no-solutions=false")
	require.NoError(t, err)
	assert.Equal(t, 4, pageCount(t, out))
}

func TestRebuildCmd_FreshReplaceAvoidsUsed(t *testing.T) {
	catalog := writeCatalog(t)
	data := t.TempDir()
	history, err := store.OpenUsageHistory(filepath.Join(data, historyFileName))
	require.NoError(t, err)
	require.NoError(t, history.Record("2021_P1_Q2"))

	// Q2 was handed out before, so Q3 is the only fresh replacement for Q1.
	out, err := run(t, "rebuild", "--catalog", catalog, "--data", data, "--fresh",
		"--topic", "geometry", "--ids", "2021_P1_Q1", "--replace", "1",
		"--out", filepath.Join(data, "r.pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Q3 - 2021 P1 - Geometry")

	history, err = store.OpenUsageHistory(filepath.Join(data, historyFileName))
	require.NoError(t, err)
	assert.True(t, history.Used("2021_P1_Q3"))
	assert.Equal(t, 2, history.Len())
}
