package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCents_Dollars(t *testing.T) {
	tests := []struct {
		name string
		want string
		in   Cents
	}{
		{name: "zero", in: 0, want: "$0.00"},
		{name: "sub dollar", in: 5, want: "$0.05"},
		{name: "hundreds", in: 30136, want: "$301.36"},
		{name: "thousands", in: 544803, want: "$5,448.03"},
		{name: "millions", in: 123456789, want: "$1,234,567.89"},
		{name: "negative", in: -200, want: "-$2.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Dollars())
		})
	}
}

func TestCents_String(t *testing.T) {
	assert.Equal(t, "5448.03", Cents(544803).String())
	assert.Equal(t, "-0.01", Cents(-1).String())
	assert.Equal(t, Cents(7), Cents(-7).Abs())
}

func TestRawAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RawAmount
		wantErr bool
	}{
		{name: "string with symbol", input: `"$5,448.03"`, want: "$5,448.03"},
		{name: "bare number", input: `5446.03`, want: "5446.03"},
		{name: "integer", input: `12`, want: "12"},
		{name: "null", input: `null`, want: ""},
		{name: "boolean rejected", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RawAmount
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawPackage_DecodesMissingAmountAsZero(t *testing.T) {
	doc := `{"package_id":"P1","invoices":[{"invoice_id":"1","lot_key":"A","line_items":[]}],"statement":{"charges":[]}}`

	var raw RawPackage
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	require.Len(t, raw.Invoices, 1)
	assert.True(t, raw.Invoices[0].DeclaredTotal.IsZero())
	assert.True(t, raw.Statement.DeclaredTotal.IsZero())
}

func TestPackage_HasStatementCrossCheck(t *testing.T) {
	total := Cents(1000)
	other := Cents(999)

	assert.False(t, (&Package{DeclaredTotal: 1000}).HasStatementCrossCheck())
	assert.True(t, (&Package{DeclaredTotal: 1000, StatementTotal: &total}).HasStatementCrossCheck())
	assert.False(t, (&Package{DeclaredTotal: 1000, StatementTotal: &other}).HasStatementCrossCheck())
}
