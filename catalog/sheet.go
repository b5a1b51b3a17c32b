package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
)

const (
	defaultSheetBaseURL = "https://docs.google.com/spreadsheets/d"
	defaultFetchTimeout = 15 * time.Second
)

// SheetSource fetches inventory rows from a spreadsheet's public CSV
// export endpoint.
type SheetSource struct {
	sheetID string
	gid     string
	baseURL string
	client  *http.Client
	logger  core.Logger
}

type SheetSourceOptions struct {
	SheetID string
	// GID selects the tab; defaults to "0".
	GID string
	// BaseURL overrides the export host, mainly for tests.
	BaseURL string
	Client  *http.Client
	Logger  core.Logger
}

func NewSheetSource(opts SheetSourceOptions) (*SheetSource, error) {
	sheetID := strings.TrimSpace(opts.SheetID)
	if sheetID == "" {
		return nil, core.BadInputError("catalog: sheet id is required", nil)
	}
	gid := strings.TrimSpace(opts.GID)
	if gid == "" {
		gid = "0"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultSheetBaseURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &SheetSource{
		sheetID: sheetID,
		gid:     gid,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}, nil
}

// ExportURL returns the CSV export endpoint this source reads.
func (s *SheetSource) ExportURL() string {
	return fmt.Sprintf("%s/%s/export?format=csv&gid=%s", s.baseURL, s.sheetID, s.gid)
}

func (s *SheetSource) Fetch(ctx context.Context) ([]Item, error) {
	if s == nil || s.client == nil {
		return nil, core.BadInputError("catalog: sheet source is not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ExportURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("catalog: sheet export returned %s", resp.Status)
	}

	items, skipped, err := decodeItems(resp.Body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Debug("skipped rows with unparsable carat weight", "skipped", skipped)
	}
	return items, nil
}

// decodeItems reads the CSV export, mapping columns by header name so the
// sheet can reorder or add columns without breaking the parse. Rows whose
// carat weight does not parse are dropped.
func decodeItems(r io.Reader) ([]Item, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: read sheet header: %w", err)
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var items []Item
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: read sheet row: %w", err)
		}
		carat, err := strconv.ParseFloat(field(record, "Carat weight"), 64)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, Item{
			Gemstone:    field(record, "Gemstone"),
			CaratWeight: carat,
			Kind:        field(record, "Single/Pair"),
			Shape:       field(record, "Shape"),
			Origin:      field(record, "Origin"),
			Treatment:   field(record, "Treatment"),
			Color:       field(record, "Color"),
			Clarity:     field(record, "Clarity"),
			PricePerCt:  field(record, "Price per ct"),
			Report:      field(record, "Report"),
			Link:        field(record, "Link"),
			Photo:       field(record, "Photo"),
			Video:       field(record, "Video"),
		})
	}
	return items, skipped, nil
}

var _ Fetcher = (*SheetSource)(nil)
