package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer exports verification runs to a Google Sheets spreadsheet, one tab per run.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

var _ service.ReportWriter = (*Writer)(nil)

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(srv, config, logger), nil
}

func newWriter(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		service: srv,
		config:  config,
		logger:  logger,
	}
}

// Write exports the run into its own tab and returns the spreadsheet id. An existing tab
// for the same run is overwritten.
func (w *Writer) Write(ctx context.Context, run *model.VerificationRun) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run cannot be nil")
	}

	title := TabTitle(run)
	w.logger.Info("starting run export",
		"run", run.ID,
		"tab", title,
		"steps", len(run.Steps))

	spreadsheetID, sheetID, err := w.prepareTab(ctx, title)
	if err != nil {
		return "", err
	}

	report := buildReport(run)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return classify(w.writeData(ctx, spreadsheetID, title, report.values))
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return classify(w.applyFormatting(ctx, spreadsheetID, sheetID, report))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("run export completed",
		"spreadsheet_id", spreadsheetID,
		"tab", title,
		"rows_written", len(report.values))

	return spreadsheetID, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// prepareTab returns the spreadsheet and the id of an empty tab with the given title,
// creating the spreadsheet or the tab when they do not exist yet.
func (w *Writer) prepareTab(ctx context.Context, title string) (string, int64, error) {
	if w.config.SpreadsheetID == "" {
		created, err := w.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: title}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return "", 0, fmt.Errorf("unable to create spreadsheet: %w", err)
		}

		w.logger.Info("created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)

		var sheetID int64
		if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
			sheetID = created.Sheets[0].Properties.SheetId
		}
		return created.SpreadsheetId, sheetID, nil
	}

	spreadsheetID := w.config.SpreadsheetID
	existing, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}

	for _, sheet := range existing.Sheets {
		if sheet.Properties == nil || sheet.Properties.Title != title {
			continue
		}
		_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, tabRange(title, "A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
		if err != nil {
			return "", 0, fmt.Errorf("failed to clear tab %s: %w", title, err)
		}
		return spreadsheetID, sheet.Properties.SheetId, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to add tab %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return "", 0, fmt.Errorf("failed to add tab %s: empty reply", title)
	}

	return spreadsheetID, resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// writeData writes the rows in batches to avoid API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, tabRange(title, fmt.Sprintf("A%d", i+1)), &sheets.ValueRange{
			Values: batch,
		}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// applyFormatting bolds titles and headers and colours every status cell.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, r report) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
	}

	for _, row := range r.headerRows {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    int64(row),
					EndRowIndex:      int64(row + 1),
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(r.values[row])),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		})
	}

	for _, cell := range r.statusCells {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    int64(cell.row),
					EndRowIndex:      int64(cell.row + 1),
					StartColumnIndex: statusColumn,
					EndColumnIndex:   statusColumn + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: statusColor(cell.status),
					},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		})
	}

	requests = append(requests, &sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   reportColumns,
			},
		},
	})

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

// classify marks quota and server errors as retryable and everything else as final.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
		return &common.RetryableError{Err: err, Retryable: retryable}
	}
	return &common.RetryableError{Err: err, Retryable: true}
}

// TabTitle names the tab a run is exported to.
func TabTitle(run *model.VerificationRun) string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Run " + id
}

func tabRange(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

func statusColor(status model.Status) *sheets.Color {
	switch status {
	case model.StatusDone:
		return &sheets.Color{Red: 0.72, Green: 0.88, Blue: 0.73}
	case model.StatusOutOfOrder:
		return &sheets.Color{Red: 0.99, Green: 0.85, Blue: 0.6}
	case model.StatusUncertain:
		return &sheets.Color{Red: 1, Green: 0.95, Blue: 0.6}
	default:
		return &sheets.Color{Red: 0.96, Green: 0.72, Blue: 0.72}
	}
}

func seconds(ts *float64) any {
	if ts == nil {
		return ""
	}
	return math.Round(*ts*10) / 10
}
