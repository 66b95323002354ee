package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/sage-poster/poster"
)

func sampleResponse() *poster.BatchResponse {
	ok := true
	name := "Acme"
	number := "INV-7"
	return &poster.BatchResponse{
		JobDuration:   "0m 3s",
		TotalRequests: 2,
		Responses: []*poster.Result{
			{
				Record: poster.Record{CusVenName: &name, InvoiceNumber: &number},
				Status: poster.Status{PostOK: &ok},
			},
			{
				Messages: []string{"Adjust customer Nobody FAILED"},
				Err:      &poster.ItemError{Kind: poster.KindLookupMiss, Message: "Adjust customer Nobody FAILED"},
			},
		},
	}
}

func TestSave_WritesSummaryAndResults(t *testing.T) {
	// GIVEN: A batch with one posted invoice and one lookup miss
	path := filepath.Join(t.TempDir(), "batch.xlsx")

	// WHEN: Saving the report
	require.NoError(t, Save(path, sampleResponse()))

	// THEN: Both sheets are readable with the expected content
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"Job Duration", "0m 3s"}, summary[0])
	assert.Equal(t, []string{"Total Requests", "2"}, summary[1])
	assert.Equal(t, []string{"Failed", "1"}, summary[2])

	results, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ResultColumns, results[0])

	assert.Equal(t, "OK", results[1][1])
	assert.Equal(t, "Acme", results[1][6])
	assert.Equal(t, "INV-7", results[1][7])

	assert.Equal(t, "FAILED", results[2][1])
	assert.Equal(t, "lookup_miss", results[2][2])
	assert.Equal(t, "Adjust customer Nobody FAILED", results[2][len(ResultColumns)-1])
}

func TestWrite_EmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &poster.BatchResponse{JobDuration: "0m 0s"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	results, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{SummarySheet, ResultsSheet}, f.GetSheetList())
}
