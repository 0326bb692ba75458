// GOOGLE SHEETS CSV EXPORT
// Read-only supplemental fill ledger. Sheets are published with link sharing and
// read through the gviz CSV endpoint, no OAuth involved.
package connectors

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dailybuy/src/model"
	"dailybuy/src/utils"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultSheetsBaseURL = "https://docs.google.com"
	// docs.google.com refuses requests without a browser-like agent.
	sheetsUserAgent = "Mozilla/5.0"
)

// Columns a supplemental sheet must provide. Extra columns are ignored.
const (
	ColumnProduct   = "product"
	ColumnSide      = "side"
	ColumnSize      = "size"
	ColumnPrice     = "price"
	ColumnCreatedAt = "created_at"
)

type SheetsClient struct {
	key     string
	baseURL string
	http    *resty.Client
}

type SheetsOption func(*SheetsClient)

func WithSheetsBaseURL(baseURL string) SheetsOption {
	return func(c *SheetsClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.http.SetBaseURL(c.baseURL)
	}
}

// NewSheetsClient reads from the spreadsheet identified by key.
func NewSheetsClient(key string, opts ...SheetsOption) *SheetsClient {
	config := GetConfig()

	baseURL := strings.TrimRight(config.SheetsBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSheetsBaseURL
	}

	c := &SheetsClient{
		key:     key,
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(config.SheetsTimeout).
			SetHeader("User-Agent", sheetsUserAgent),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sheetPath is /spreadsheets/d/{key}/gviz/tq; tqx=out:csv and sheet={name} go in the query.
func (c *SheetsClient) sheetPath() string {
	return "/spreadsheets/d/" + c.key + "/gviz/tq"
}

// Rows downloads one sheet and returns its rows keyed by lower-cased header.
func (c *SheetsClient) Rows(ctx context.Context, sheet string) ([]map[string]string, error) {
	if strings.TrimSpace(c.key) == "" {
		return nil, errors.New("spreadsheet key is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tqx", "out:csv").
		SetQueryParam("sheet", sheet).
		Get(c.sheetPath())
	if err != nil {
		return nil, fmt.Errorf("fetch sheet %q: %w", sheet, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch sheet %q: HTTP %d", sheet, resp.StatusCode())
	}

	return parseSheetCSV(strings.NewReader(string(resp.Body())))
}

// Fills reads a sheet as supplemental fills, tagged with the sheet name as source.
func (c *SheetsClient) Fills(ctx context.Context, sheet string) ([]model.Fill, error) {
	rows, err := c.Rows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	return rowsToFills(rows, sheet), nil
}

// ReadFillsCSV parses a CSV export with the sheet columns, tagging every fill
// with source.
func ReadFillsCSV(r io.Reader, source string) ([]model.Fill, error) {
	rows, err := parseSheetCSV(r)
	if err != nil {
		return nil, err
	}
	return rowsToFills(rows, source), nil
}

// rowsToFills drops rows without a parsable product, size or price with a warning.
func rowsToFills(rows []map[string]string, source string) []model.Fill {
	fills := make([]model.Fill, 0, len(rows))
	for i, row := range rows {
		fill, err := rowToFill(row)
		if err != nil {
			logger.WithFields(logger.Fields{
				"source": source,
				"row":    i + 2,
			}).WithError(err).Warn("Skipping supplemental row")
			continue
		}
		fill.Source = source
		fills = append(fills, fill)
	}
	return fills
}

// parseSheetCSV takes the first record as header. Records whose column count
// differs from the header are skipped.
func parseSheetCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	rows := []map[string]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) != len(header) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowToFill(row map[string]string) (model.Fill, error) {
	product, err := model.ParseProductID(row[ColumnProduct])
	if err != nil {
		return model.Fill{}, err
	}
	size, err := parseSheetNumber(row[ColumnSize])
	if err != nil {
		return model.Fill{}, fmt.Errorf("size: %w", err)
	}
	price, err := parseSheetNumber(row[ColumnPrice])
	if err != nil {
		return model.Fill{}, fmt.Errorf("price: %w", err)
	}

	// A missing or odd date keeps the fill in the cost basis but out of the
	// elapsed-time computation.
	var created time.Time
	if raw := row[ColumnCreatedAt]; raw != "" {
		if ts, err := utils.ParseTimestamp(raw); err == nil {
			created = ts
		}
	}

	return model.Fill{
		ProductID: product.String(),
		Side:      strings.ToLower(row[ColumnSide]),
		Size:      size,
		Price:     price,
		CreatedAt: created,
	}, nil
}

// parseSheetNumber accepts the formatted values sheets export, e.g. "$1,234.50".
func parseSheetNumber(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if clean == "" {
		return decimal.Zero, errors.New("empty value")
	}
	return decimal.NewFromString(clean)
}
