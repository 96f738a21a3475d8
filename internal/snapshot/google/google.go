// Package google serves snapshots from the tabs of one Google spreadsheet.
// Each CSV key maps to the tab of the same base name, e.g.
// "cost_mlb_202510.csv" reads tab "cost_mlb_202510". Tab values are rendered
// back into the delimited text the parser expects.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"costboard/internal/snapshot"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// valuesReader is the slice of the Sheets API the client needs.
type valuesReader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (s sheetsValues) Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Client struct {
	values        valuesReader
	spreadsheetID string
}

var _ snapshot.Source = (*Client)(nil)

// New creates a read-only Sheets client. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{values: sheetsValues{svc: svc}, spreadsheetID: spreadsheetID}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

// Fetch reads the tab named after key. Only .csv keys are served.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	tab, ok := tabName(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	}
	rows, err := c.values.Values(ctx, c.spreadsheetID, quoteTab(tab))
	if err != nil {
		if isMissingRange(err) {
			return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
		}
		return nil, snapshot.Wrap(key, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	}
	return render(rows), nil
}

func tabName(key string) (string, bool) {
	if !strings.EqualFold(path.Ext(key), ".csv") {
		return "", false
	}
	name := strings.TrimSuffix(path.Base(key), path.Ext(key))
	return name, name != ""
}

// quoteTab produces an A1 range selecting the whole tab.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// isMissingRange recognises the API's answer for a tab that does not exist.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

// render writes rows as comma separated lines. Cells containing a comma are
// quoted; quote characters are dropped since the dialect cannot escape them.
func render(rows [][]interface{}) []byte {
	var b strings.Builder
	for _, row := range rows {
		for i, cell := range toStrings(row) {
			if i > 0 {
				b.WriteByte(',')
			}
			cell = strings.ReplaceAll(cell, `"`, "")
			if strings.ContainsAny(cell, ",") {
				b.WriteByte('"')
				b.WriteString(cell)
				b.WriteByte('"')
				continue
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(strings.ReplaceAll(fmt.Sprint(v), "\n", " "))
	}
	return out
}
