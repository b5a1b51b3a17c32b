// Package catalog searches the gem inventory sheet. Rows come from the
// sheet's public CSV export and are cached read-through so repeated
// searches within the TTL do not refetch the sheet.
package catalog

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/macienko/GemsChatbot/core"
)

const rowsCacheKeyPrefix = "gems-relay::catalog_rows::v1"

// Item is one inventory row. CaratWeight is parsed; everything else is
// carried verbatim from the sheet.
type Item struct {
	Gemstone    string
	CaratWeight float64
	Kind        string
	Shape       string
	Origin      string
	Treatment   string
	Color       string
	Clarity     string
	PricePerCt  string
	Report      string
	Link        string
	Photo       string
	Video       string
}

// Query filters and orders a search. Gemstone is required and matched
// case-insensitively. A Target orders results by proximity to that carat
// weight and wins over Ascending.
type Query struct {
	Gemstone  string
	CaratMin  *float64
	CaratMax  *float64
	Pair      bool
	Target    *float64
	Ascending bool
}

// Fetcher returns the current inventory rows.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Item, error)
}

type Service struct {
	source Fetcher
	cache  repositorycache.CacheService
	key    string
	logger core.Logger
}

type ServiceOptions struct {
	Source Fetcher
	Cache  repositorycache.CacheService
	// CacheKeySuffix distinguishes entries when multiple sheets share one
	// cache service; usually the sheet id.
	CacheKeySuffix string
	Logger         core.Logger
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Source == nil {
		return nil, core.BadInputError("catalog: inventory source is required", nil)
	}
	if opts.Cache == nil {
		return nil, core.BadInputError("catalog: cache service is required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &Service{
		source: opts.Source,
		cache:  opts.Cache,
		key:    rowsCacheKey(opts.CacheKeySuffix),
		logger: logger,
	}, nil
}

func rowsCacheKey(suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		suffix = "default"
	}
	return rowsCacheKeyPrefix + "::" + suffix
}

// Search filters the cached inventory by the query and returns matches
// sorted per the query's Target/Ascending preferences.
func (s *Service) Search(ctx context.Context, query Query) ([]Item, error) {
	if s == nil || s.source == nil {
		return nil, core.BadInputError("catalog: service is not configured", nil)
	}
	gemstone := strings.ToLower(strings.TrimSpace(query.Gemstone))
	if gemstone == "" {
		return nil, core.BadInputError("catalog: gemstone is required", nil)
	}

	rows, err := repositorycache.GetOrFetch(ctx, s.cache, s.key, func(ctx context.Context) ([]Item, error) {
		fetched, fetchErr := s.source.Fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return fetched, nil
	})
	if err != nil {
		return nil, fetchFailedError(err)
	}

	expected := "single"
	if query.Pair {
		expected = "pair"
	}

	var results []Item
	for _, row := range rows {
		if strings.ToLower(strings.TrimSpace(row.Gemstone)) != gemstone {
			continue
		}
		if strings.ToLower(strings.TrimSpace(row.Kind)) != expected {
			continue
		}
		if query.CaratMin != nil && row.CaratWeight < *query.CaratMin {
			continue
		}
		if query.CaratMax != nil && row.CaratWeight > *query.CaratMax {
			continue
		}
		results = append(results, row)
	}

	switch {
	case query.Target != nil:
		target := *query.Target
		sort.SliceStable(results, func(i, j int) bool {
			return math.Abs(results[i].CaratWeight-target) < math.Abs(results[j].CaratWeight-target)
		})
	case query.Ascending:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].CaratWeight < results[j].CaratWeight
		})
	}

	s.logger.Debug("inventory search",
		"gemstone", gemstone,
		"pair", query.Pair,
		"results", len(results),
	)
	return results, nil
}

// Invalidate drops the cached rows so the next search refetches.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return core.BadInputError("catalog: service is not configured", nil)
	}
	return s.cache.Delete(ctx, s.key)
}

func fetchFailedError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, "catalog: inventory fetch failed").
		WithCode(http.StatusBadGateway).
		WithTextCode("CATALOG_FETCH_FAILED")
}
