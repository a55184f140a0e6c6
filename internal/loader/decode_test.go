package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedlotDoc = `{
  "package_id": "PKG-1",
  "period": "2024-03",
  "counterparty_id": "ACME",
  "invoices": [
    {"invoice_id": "13335", "lot_key": "20-3926", "declared_total": "$5,448.03",
     "line_items": [{"description": "Feed", "amount": 5426.59}, {"amount": "8.71"}, {"amount": "12.73"}]}
  ],
  "statement": {"charges": [{"reference_key": "20-3926", "amount": "5446.03"}]}
}`

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ids   []string
	}{
		{name: "single object", input: feedlotDoc, ids: []string{"PKG-1"}},
		{name: "array", input: `[{"package_id":"A"},{"package_id":"B"}]`, ids: []string{"A", "B"}},
		{name: "concatenated", input: "{\"package_id\":\"A\"}\n{\"package_id\":\"B\"}\n", ids: []string{"A", "B"}},
		{name: "leading whitespace", input: "\n\n  [{\"package_id\":\"A\"}]", ids: []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Decode(strings.NewReader(tt.input))
			require.NoError(t, err)
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestDecode_KeepsAmountText(t *testing.T) {
	docs, err := Decode(strings.NewReader(feedlotDoc))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	inv := docs[0].Invoices[0]
	assert.Equal(t, model.RawAmount("$5,448.03"), inv.DeclaredTotal)
	assert.Equal(t, model.RawAmount("5426.59"), inv.LineItems[0].Amount, "numbers are kept as their literal text")

	res, err := Normalize(docs[0])
	require.NoError(t, err)
	assert.Equal(t, model.Cents(544803), res.Package.Invoices[0].LineItemTotal())
}

func TestDecode_Malformed(t *testing.T) {
	for _, input := range []string{"", "   ", "{", `[{"package_id":"A"}, null]`, `{"invoices": "nope"}`} {
		_, err := Decode(strings.NewReader(input))
		assert.ErrorIs(t, err, common.ErrMalformedRecord, "input %q", input)
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "march.json")
	require.NoError(t, os.WriteFile(path, []byte(feedlotDoc), 0o600))

	docs, err := DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
