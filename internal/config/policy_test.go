package config

import (
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viperFromYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestLoadPolicy_Defaults(t *testing.T) {
	p, err := LoadPolicy(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)
	assert.False(t, p.Escalation.Enabled(), "escalation is off by default")
}

func TestLoadPolicy_FromYAML(t *testing.T) {
	v := viperFromYAML(t, `
policy:
  line_item_epsilon: "0.01"
  urgency_floor: "$1.00"
  materiality_threshold: 0.05
  max_digit_substitutions: 1
  recent_items: 25
  workers: 8
  escalation:
    blocking_kinds: [DuplicateKey, StatementTotalMismatch]
    missing_counterpart_limit: "1,000.00"
    max_failed_runs: 3
`)

	p, err := LoadPolicy(v)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(1), p.LineItemEpsilon)
	assert.Equal(t, model.Cents(100), p.UrgencyFloor)
	assert.InDelta(t, 0.05, p.MaterialityThreshold, 1e-12)
	assert.Equal(t, 1, p.MaxDigitSubstitutions)
	assert.Equal(t, 25, p.RecentItems)
	assert.Equal(t, 8, p.Workers)
	assert.Equal(t, []string{"DuplicateKey", "StatementTotalMismatch"}, p.Escalation.BlockingKinds)
	assert.Equal(t, model.Cents(100000), p.Escalation.MissingCounterpartLimit)
	assert.Equal(t, 3, p.Escalation.MaxFailedRuns)
	assert.True(t, p.Escalation.Enabled())
}

func TestLoadPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "negative floor", doc: "policy:\n  urgency_floor: \"-5.00\"\n", wantMsg: "UrgencyFloor"},
		{name: "unparseable floor", doc: "policy:\n  urgency_floor: abc\n", wantMsg: "policy.urgency_floor"},
		{name: "materiality above one", doc: "policy:\n  materiality_threshold: 1.5\n", wantMsg: "MaterialityThreshold"},
		{name: "zero workers", doc: "policy:\n  workers: 0\n", wantMsg: "Workers"},
		{name: "unknown blocking kind", doc: "policy:\n  escalation:\n    blocking_kinds: [Typo]\n", wantMsg: "BlockingKinds"},
		{name: "epsilon too large", doc: "policy:\n  line_item_epsilon: \"5.00\"\n", wantMsg: "LineItemEpsilon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicy(viperFromYAML(t, tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("HOME", "/home/ops")

	tests := []struct {
		name string
		set  string
		want string
	}{
		{name: "default", want: "/home/ops/.local/share/tally/tally.db"},
		{name: "tilde", set: "~/data/t.db", want: "/home/ops/data/t.db"},
		{name: "memory", set: ":memory:", want: ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			if tt.set != "" {
				v.Set("database.path", tt.set)
			}
			assert.Equal(t, tt.want, DatabasePath(v))
		})
	}
}
