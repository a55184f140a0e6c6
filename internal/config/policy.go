package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Policy holds every threshold the reconciliation engine applies. It is read
// once per run and never changes while a batch is in flight.
type Policy struct {
	Escalation EscalationPolicy

	// LineItemEpsilon absorbs known rounding in the line-item check.
	LineItemEpsilon model.Cents `validate:"gte=0,lte=100"`
	// UrgencyFloor is the absolute difference above which a mismatch is urgent.
	UrgencyFloor model.Cents `validate:"gte=0"`
	// MaterialityThreshold is a ratio (0.10 = 10%).
	MaterialityThreshold float64 `validate:"gte=0,lte=1"`
	// MaxDigitSubstitutions bounds the digit-by-digit transcription heuristic.
	MaxDigitSubstitutions int `validate:"gte=0,lte=6"`
	RecentItems           int `validate:"gte=0,lte=1000"`
	Workers               int `validate:"gte=1,lte=64"`
}

// EscalationPolicy decides when a package is blocked instead of left in
// review. The zero value never blocks.
type EscalationPolicy struct {
	BlockingKinds []string `validate:"dive,oneof=AmountMismatch MissingCounterpart UnparseableRecord LineItemMismatch IncompleteRecord DuplicateKey MissingExtraction StatementTotalMismatch"`
	// MissingCounterpartLimit blocks when a missing invoice or charge exceeds
	// this amount. Zero disables the rule.
	MissingCounterpartLimit model.Cents `validate:"gte=0"`
	// MaxFailedRuns blocks after this many consecutive non-complete runs,
	// counting the current one. Zero disables the rule.
	MaxFailedRuns int `validate:"gte=0"`
}

// Enabled reports whether any escalation rule is configured.
func (e EscalationPolicy) Enabled() bool {
	return len(e.BlockingKinds) > 0 || e.MissingCounterpartLimit > 0 || e.MaxFailedRuns > 0
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		LineItemEpsilon:       0,
		UrgencyFloor:          10000,
		MaterialityThreshold:  0.10,
		MaxDigitSubstitutions: 2,
		RecentItems:           10,
		Workers:               4,
	}
}

var validate = validator.New()

// Validate checks the policy. Any failure wraps common.ErrInvalidConfig.
func (p Policy) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)",
			strings.TrimPrefix(fe.Namespace(), "Policy."), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(msgs, "; "))
}

// LoadPolicy reads policy.* keys from viper on top of the defaults and
// validates the result. Dollar amounts are read as decimal strings.
func LoadPolicy(v *viper.Viper) (Policy, error) {
	p := DefaultPolicy()

	dollars := []struct {
		dst *model.Cents
		key string
	}{
		{key: "policy.line_item_epsilon", dst: &p.LineItemEpsilon},
		{key: "policy.urgency_floor", dst: &p.UrgencyFloor},
		{key: "policy.escalation.missing_counterpart_limit", dst: &p.Escalation.MissingCounterpartLimit},
	}
	for _, d := range dollars {
		if !v.IsSet(d.key) {
			continue
		}
		amount, err := loader.ParseAmount(model.RawAmount(v.GetString(d.key)))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, d.key, err)
		}
		*d.dst = amount
	}

	if v.IsSet("policy.materiality_threshold") {
		p.MaterialityThreshold = v.GetFloat64("policy.materiality_threshold")
	}
	if v.IsSet("policy.max_digit_substitutions") {
		p.MaxDigitSubstitutions = v.GetInt("policy.max_digit_substitutions")
	}
	if v.IsSet("policy.recent_items") {
		p.RecentItems = v.GetInt("policy.recent_items")
	}
	if v.IsSet("policy.workers") {
		p.Workers = v.GetInt("policy.workers")
	}
	if v.IsSet("policy.escalation.max_failed_runs") {
		p.Escalation.MaxFailedRuns = v.GetInt("policy.escalation.max_failed_runs")
	}
	if v.IsSet("policy.escalation.blocking_kinds") {
		p.Escalation.BlockingKinds = v.GetStringSlice("policy.escalation.blocking_kinds")
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
