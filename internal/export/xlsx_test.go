package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func feedlotQueue() *queue.Queue {
	at := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	return queue.Build([]model.ReviewQueueItem{
		{PackageID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Key: "20-3926", InvoiceID: "13335",
			Reason: queue.ReasonLikelyTranscription, Amount: 200, ProducedAt: at, Seq: 0},
		{PackageID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Key: "20-3927",
			Reason: queue.ReasonMissingInvoice, Amount: 30136, Urgent: true, ProducedAt: at, Seq: 1},
	}, queue.Scope{}, 10)
}

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, feedlotQueue()))

	groups := readRows(t, buf.Bytes(), GroupsSheet)
	require.Len(t, groups, 5, "header, two groups, blank, total")
	assert.Equal(t, []string{"Reason", "Count", "Exposure", "Urgent"}, groups[0])
	assert.Equal(t, []string{queue.ReasonMissingInvoice, "1", "301.36", "yes"}, groups[1])
	assert.Equal(t, []string{queue.ReasonLikelyTranscription, "1", "2", "no"}, groups[2])
	assert.Equal(t, []string{"Total", "2", "303.36", "1 urgent"}, groups[4])

	items := readRows(t, buf.Bytes(), ItemsSheet)
	require.Len(t, items, 3)
	assert.Equal(t, "Package", items[0][0])
	assert.Equal(t, "20-3927", items[1][3])
	assert.Equal(t, "301.36", items[1][6])
	assert.Equal(t, "2024-04-02 09:00:00", items[1][9])
	assert.Equal(t, "13335", items[2][4])
}

func TestWriteXLSX_EmptyQueue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter(&buf).Write(context.Background(), queue.Build(nil, queue.Scope{}, 10)))

	groups := readRows(t, buf.Bytes(), GroupsSheet)
	require.NotEmpty(t, groups)
	assert.Equal(t, "Total", groups[len(groups)-1][0])

	items := readRows(t, buf.Bytes(), ItemsSheet)
	assert.Len(t, items, 1, "header only")
}
