package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "non-empty", value: "PKG-1"},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace", value: "  \t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.value, "packageID")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "packageID") {
				t.Errorf("error %q should name the parameter", err)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	for _, st := range []model.PackageStatus{model.StatusPending, model.StatusComplete, model.StatusReview, model.StatusBlocked} {
		if err := validateStatus(st); err != nil {
			t.Errorf("validateStatus(%q) error = %v", st, err)
		}
	}
	if err := validateStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("validateStatus(done) error = %v, want ErrInvalidStatus", err)
	}
}

func TestValidateOverride(t *testing.T) {
	tests := []struct {
		override *model.Override
		want     error
		name     string
	}{
		{name: "valid", override: &model.Override{PackageID: "P", Key: "K", Author: "ops"}},
		{name: "nil", want: ErrNilParameter},
		{name: "no package", override: &model.Override{Key: "K", Author: "ops"}, want: ErrInvalidOverride},
		{name: "no key", override: &model.Override{PackageID: "P", Author: "ops"}, want: ErrInvalidOverride},
		{name: "no author", override: &model.Override{PackageID: "P", Key: "K"}, want: ErrInvalidOverride},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOverride(tt.override)
			if tt.want == nil {
				if err != nil {
					t.Errorf("validateOverride() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("validateOverride() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateRunResult(t *testing.T) {
	tests := []struct {
		result *service.RunResult
		want   error
		name   string
	}{
		{name: "valid", result: &service.RunResult{Run: model.ReconciliationRun{PackageID: "P", Status: model.StatusComplete}}},
		{name: "nil", want: ErrNilParameter},
		{name: "no package", result: &service.RunResult{Run: model.ReconciliationRun{Status: model.StatusReview}}, want: ErrInvalidRun},
		{name: "pending", result: &service.RunResult{Run: model.ReconciliationRun{PackageID: "P", Status: model.StatusPending}}, want: ErrInvalidRun},
		{name: "unknown status", result: &service.RunResult{Run: model.ReconciliationRun{PackageID: "P", Status: "x"}}, want: ErrInvalidStatus},
		{name: "foreign item", result: &service.RunResult{
			Run:   model.ReconciliationRun{PackageID: "P", Status: model.StatusReview},
			Items: []model.ReviewQueueItem{{PackageID: "Q"}},
		}, want: ErrInvalidRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRunResult(tt.result)
			if tt.want == nil {
				if err != nil {
					t.Errorf("validateRunResult() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("validateRunResult() error = %v, want %v", err, tt.want)
			}
		})
	}
}
