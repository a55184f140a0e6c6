package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var _ service.QueueWriter = (*Writer)(nil)

// Header written in the first row of the items table.
var itemHeader = []any{"Package", "Period", "Counterparty", "Key", "Invoice", "Reason", "Amount", "Urgent", "Explanation"}

// Writer publishes the review queue to Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets queue writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(config, srv, logger), nil
}

func newWriter(config Config, srv *sheets.Service, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{config: config, service: srv, logger: logger}
}

// Write replaces the spreadsheet's contents with q.
func (w *Writer) Write(ctx context.Context, q *queue.Queue) error {
	w.logger.Info("starting queue export",
		"items", q.Total,
		"urgent", q.UrgentCount,
		"groups", len(q.ByReason))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	backoff := common.Backoff{
		Attempts: w.config.RetryAttempts,
		Initial:  w.config.RetryDelay,
		Max:      30 * w.config.RetryDelay,
	}

	if err := common.Retry(ctx, "clear sheet", backoff, func(ctx context.Context) error {
		return classify(w.clearSheet(ctx, spreadsheetID))
	}); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := prepareQueueData(NewTabData(q))

	if err := common.Retry(ctx, "write queue", backoff, func(ctx context.Context) error {
		return classify(w.writeData(ctx, spreadsheetID, values))
	}); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		if err := common.Retry(ctx, "format sheet", backoff, func(ctx context.Context) error {
			return classify(w.applyFormatting(ctx, spreadsheetID, len(values)))
		}); err != nil {
			// Formatting is cosmetic
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("queue export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return nil
}

// classify tells Retry how to treat a Sheets API failure: 429 waits out the
// rate limit, other 4xx responses will not improve on retry.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimited, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return common.Permanent(err)
	default:
		return err
	}
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch config.Auth() {
	case AuthServiceAccount:
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	case AuthOAuth:
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	default:
		return nil, errors.New("no authentication method configured")
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: "Review Queue"}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// exposureRow is the zero-based row of the summary Exposure cell.
const exposureRow = 5

// prepareQueueData lays out the summary block, the By Reason table and the
// Items table on one sheet.
func prepareQueueData(data TabData) [][]any {
	values := make([][]any, 0, 14+len(data.Groups)+len(data.Items))

	values = append(values,
		[]any{"Review Queue", data.ScopeLabel},
		[]any{},
		[]any{"Summary"},
		[]any{"Total Items", data.Total},
		[]any{"Urgent Items", data.Urgent},
		[]any{"Exposure", data.Exposure.InexactFloat64()},
		[]any{},
		[]any{"By Reason"},
		[]any{"Reason", "Count", "Exposure", "Urgent"},
	)

	for _, g := range data.Groups {
		values = append(values, []any{g.Reason, g.Count, g.Exposure.InexactFloat64(), yesNo(g.Urgent)})
	}

	values = append(values,
		[]any{},
		[]any{},
		[]any{"Items"},
		itemHeader,
	)

	for _, item := range data.Items {
		values = append(values, []any{
			item.PackageID,
			item.Period,
			item.CounterpartyID,
			item.Key,
			item.InvoiceID,
			item.Reason,
			item.Amount.InexactFloat64(),
			yesNo(item.Urgent),
			item.Explanation,
		})
	}

	return values
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	// Write in batches to avoid API limits
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, totalRows int) error {
	currency := func(startRow, endRow, col int64) *sheets.Request {
		return &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    startRow,
					EndRowIndex:      endRow,
					StartColumnIndex: col,
					EndColumnIndex:   col + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: "$#,##0.00"},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		}
	}

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: 0, StartRowIndex: 0, EndRowIndex: 1, StartColumnIndex: 0, EndColumnIndex: 2},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		currency(exposureRow, exposureRow+1, 1),
		currency(0, int64(totalRows), 2),
		currency(0, int64(totalRows), 6),
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{SheetId: 0, Dimension: "COLUMNS", StartIndex: 0, EndIndex: int64(len(itemHeader))},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        0,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}
