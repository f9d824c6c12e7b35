package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spigell/edge-shortlister/internal/scoring"
	"github.com/spigell/edge-shortlister/internal/talent"
)

func sampleShortlist() *scoring.Shortlist {
	return &scoring.Shortlist{
		Opportunity: "Finance Audit",
		Limit:       8,
		Total:       3,
		Evaluated:   3,
		Passed:      2,
		Duration:    1500 * time.Millisecond,
		Entries: []*scoring.Result{
			{
				Name:          "Ada",
				Score:         100,
				Justification: "Strong ledger background.",
				Notes:         []string{"Industry/School match (+20)", "AI: Strong ledger background."},
				ResumeLink:    "https://example.com/ada.pdf",
				Country:       "US",
				Email:         "ada@example.com",
			},
			{Name: "Bo", Score: 35, Justification: "Junior.", Notes: []string{"AI: Junior."}},
		},
	}
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"Name", "Score", "Justification", "Notes", "Resume Link"}, Columns(Options{}))
	assert.Equal(t, []string{"Name", "Score", "Justification", "Notes", "Resume Link", "Country", "Email"},
		Columns(Options{Country: true, Email: true}))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleShortlist(), Options{Country: true}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{
		"Ada", "100", "Strong ledger background.",
		"Industry/School match (+20) | AI: Strong ledger background.",
		"https://example.com/ada.pdf", "US",
	}, records[1])
	assert.Equal(t, []string{"Bo", "35", "Junior.", "AI: Junior.", "", ""}, records[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleShortlist(), Options{Email: true}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{shortlistSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(shortlistSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns(Options{Email: true}), rows[0])
	assert.Equal(t, "Ada", rows[1][0])
	assert.Equal(t, "100", rows[1][1])
	assert.Equal(t, "ada@example.com", rows[1][5])

	opportunity, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Finance Audit", opportunity)

	shortlisted, err := f.GetCellValue(summarySheet, "B9")
	require.NoError(t, err)
	assert.Equal(t, "2", shortlisted)
}

func TestSaveChoosesFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out", "list.csv")
	require.NoError(t, Save(csvPath, sampleShortlist(), Options{}))
	table, err := talent.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	xlsxPath := filepath.Join(dir, "list.xlsx")
	require.NoError(t, Save(xlsxPath, sampleShortlist(), Options{}))
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "shortlist_finance_audit_q3.csv", FileName("  Finance Audit (Q3) ", "csv"))
	assert.Equal(t, "shortlist.xlsx", FileName("", ".xlsx"))
}
