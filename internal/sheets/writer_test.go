package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID: "client", ClientSecret: "secret", RefreshToken: "token",
				BatchSize: 100, RetryAttempts: 3, RetryDelay: time.Second,
			},
		},
		{
			name:   "valid service account config",
			config: Config{ServiceAccountPath: "/path/to/key.json", BatchSize: 100},
		},
		{
			name:    "missing auth",
			config:  Config{BatchSize: 100},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name:    "partial oauth credentials",
			config:  Config{ClientID: "client", RefreshToken: "token", BatchSize: 100},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID: "client", ClientSecret: "secret", RefreshToken: "token",
				ServiceAccountPath: "/path/to/key.json", BatchSize: 100,
			},
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name:    "invalid batch size",
			config:  Config{ServiceAccountPath: "/k.json"},
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name:    "negative retry attempts",
			config:  Config{ServiceAccountPath: "/k.json", BatchSize: 1, RetryAttempts: -1},
			wantErr: true,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name:    "negative retry delay",
			config:  Config{ServiceAccountPath: "/k.json", BatchSize: 1, RetryDelay: -time.Second},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.EnableFormatting)
	assert.Equal(t, DefaultSpreadsheetName, config.SpreadsheetName)
	assert.Equal(t, 500, config.BatchSize)
	assert.Equal(t, 3, config.RetryAttempts)
	assert.Equal(t, time.Second, config.RetryDelay)
}

func testQueue() *queue.Queue {
	items := []model.ReviewQueueItem{
		{PackageID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Key: "20-3927",
			Reason: queue.ReasonMissingInvoice, Amount: 30136, Urgent: true, Seq: 1,
			Explanation: "Missing invoice: statement charges $301.36 for key 20-3927"},
		{PackageID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Key: "20-3926", InvoiceID: "13335",
			Reason: queue.ReasonLikelyTranscription, Amount: 200, Seq: 0},
	}
	return queue.Build(items, queue.Scope{Period: "2024-03"}, 10)
}

func TestPrepareQueueData(t *testing.T) {
	values := prepareQueueData(NewTabData(testQueue()))

	assert.Equal(t, "Review Queue", values[0][0])
	assert.Equal(t, "period 2024-03", values[0][1])
	assert.Equal(t, []any{"Total Items", 2}, values[3])
	assert.Equal(t, []any{"Urgent Items", 1}, values[4])
	assert.Equal(t, "Exposure", values[exposureRow][0])
	assert.InDelta(t, 303.36, values[exposureRow][1], 1e-9)

	byReason := indexOf(values, "By Reason")
	require.NotEqual(t, -1, byReason)
	// Urgent group pinned first
	assert.Equal(t, queue.ReasonMissingInvoice, values[byReason+2][0])
	assert.Equal(t, "yes", values[byReason+2][3])
	assert.Equal(t, queue.ReasonLikelyTranscription, values[byReason+3][0])

	itemsStart := indexOf(values, "Items")
	require.NotEqual(t, -1, itemsStart)
	assert.Equal(t, itemHeader, values[itemsStart+1])
	first := values[itemsStart+2]
	assert.Equal(t, "20-3927", first[3])
	assert.InDelta(t, 301.36, first[6], 1e-9)
	assert.Equal(t, "yes", first[7])
	assert.Len(t, values, itemsStart+4)
}

func indexOf(values [][]any, label string) int {
	for i, row := range values {
		if len(row) > 0 && row[0] == label {
			return i
		}
	}
	return -1
}

func TestScopeLabel(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		scope queue.Scope
	}{
		{name: "everything", want: "All packages"},
		{name: "period", scope: queue.Scope{Period: "2024-03"}, want: "period 2024-03"},
		{name: "controller", scope: queue.Scope{CounterpartyID: "ACME", Role: queue.RoleController},
			want: "counterparty ACME, urgent only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeLabel(tt.scope))
		})
	}
}

// fakeSheetsAPI answers every Sheets call with an empty object and records
// what was asked.
type fakeSheetsAPI struct {
	calls   []string
	written [][]any
	mu      sync.Mutex
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPut {
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err == nil {
			f.written = append(f.written, vr.Values...)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
}

func newTestWriter(t *testing.T, handler http.Handler, cfg Config) *Writer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return newWriter(cfg, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWriter_Write(t *testing.T) {
	api := &fakeSheetsAPI{}
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "sheet-1"
	cfg.BatchSize = 5
	cfg.RetryAttempts = 1
	w := newTestWriter(t, api, cfg)

	require.NoError(t, w.Write(context.Background(), testQueue()))

	api.mu.Lock()
	defer api.mu.Unlock()

	require.NotEmpty(t, api.calls)
	assert.Equal(t, "GET /v4/spreadsheets/sheet-1", api.calls[0])
	assert.True(t, strings.HasSuffix(api.calls[1], ":clear"), "clears before writing: %s", api.calls[1])

	puts := 0
	for _, c := range api.calls {
		if strings.HasPrefix(c, "PUT ") {
			puts++
		}
	}
	expected := prepareQueueData(NewTabData(testQueue()))
	assert.Equal(t, (len(expected)+4)/5, puts, "one update per batch")
	assert.Len(t, api.written, len(expected))
	assert.True(t, strings.HasSuffix(api.calls[len(api.calls)-1], ":batchUpdate"), "formatting applied last")
}

func TestWriter_WriteFailsWhenSpreadsheetMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	})
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "missing"
	w := newTestWriter(t, handler, cfg)

	err := w.Write(context.Background(), testQueue())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to access spreadsheet missing")
}

// flakyAPI fails the first clear call with status, then behaves like
// fakeSheetsAPI.
type flakyAPI struct {
	fakeSheetsAPI
	status int
	clears int
}

func (f *flakyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, ":clear") {
		f.mu.Lock()
		f.clears++
		first := f.clears == 1
		f.mu.Unlock()
		if first {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.status) + `,"message":"nope"}}`))
			return
		}
	}
	f.fakeSheetsAPI.ServeHTTP(w, r)
}

func TestWriter_WriteRetries(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErr    bool
		wantClears int
	}{
		{name: "server error is retried", status: http.StatusInternalServerError, wantClears: 2},
		{name: "rate limit is retried", status: http.StatusTooManyRequests, wantClears: 2},
		{name: "bad request is not retried", status: http.StatusBadRequest, wantErr: true, wantClears: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &flakyAPI{status: tt.status}
			cfg := DefaultConfig()
			cfg.SpreadsheetID = "sheet-1"
			cfg.RetryAttempts = 2
			cfg.RetryDelay = time.Millisecond
			cfg.EnableFormatting = false
			w := newTestWriter(t, api, cfg)

			err := w.Write(context.Background(), testQueue())
			if tt.wantErr {
				require.Error(t, err)
				var apiErr *googleapi.Error
				assert.True(t, errors.As(err, &apiErr))
			} else {
				require.NoError(t, err)
			}
			api.mu.Lock()
			defer api.mu.Unlock()
			assert.Equal(t, tt.wantClears, api.clears)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classify(plain))

	limited := classify(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.ErrorIs(t, limited, common.ErrRateLimited)

	var permanent *common.PermanentError
	assert.True(t, errors.As(classify(&googleapi.Error{Code: http.StatusForbidden}), &permanent))
	assert.False(t, errors.As(classify(&googleapi.Error{Code: http.StatusBadGateway}), &permanent))
}

func TestConfig_Auth(t *testing.T) {
	oauth := Config{ClientID: "c", ClientSecret: "s", RefreshToken: "r"}
	assert.Equal(t, AuthOAuth, oauth.Auth())

	sa := Config{ServiceAccountPath: "/k.json"}
	assert.Equal(t, AuthServiceAccount, sa.Auth())

	both := oauth
	both.ServiceAccountPath = "/k.json"
	assert.Equal(t, AuthNone, both.Auth())

	assert.Equal(t, AuthNone, (&Config{ClientID: "c"}).Auth())
}
