// Package memsource serves grid rows from records held in memory.
//
// The Source sorts, filters and slices its records for every request, so it
// is meant for datasets that fit comfortably in memory (reference tables,
// fixtures, demos). Records are never modified after they are added.
package memsource

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fvbommel/sortorder"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/filter"
	"github.com/hugr-lab/gridsource-go/payload"
)

// ErrInvalidFilter indicates the request's filter model could not be parsed.
var ErrInvalidFilter = errors.New("memsource: invalid filter model")

// Record is one row of the source.
type Record = map[string]any

// Options configures a Source.
type Options struct {
	// Keys is the key style of the payload encoder serving this source.
	// Grid column ids are record keys in that style.
	// OPTIONAL: defaults to payload.KeysLowerCamel.
	Keys payload.KeyStyle

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Source is a gridsource.Fetcher over in-memory records.
// Safe for concurrent use; Replace and Append may run while requests are
// being served.
type Source struct {
	mx      sync.RWMutex
	records []Record

	// aliases maps encoded record keys to the keys themselves, so that
	// grid column ids produced by the payload encoder resolve back.
	aliases   map[string]string
	fieldName func(string) string

	logger *slog.Logger
}

var _ gridsource.Fetcher[Record] = (*Source)(nil)

// New returns a source owning records.
func New(records []Record, opts *Options) *Source {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Source{
		logger:    logger,
		fieldName: payload.NewEncoder(&payload.Options{Keys: opts.Keys}).FieldName,
	}
	s.Replace(records)
	return s
}

// LoadJSON reads a JSON array of objects. Numbers keep their exact
// textual form.
func LoadJSON(r io.Reader, opts *Options) (*Source, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("memsource: decode records: %w", err)
	}
	return New(records, opts), nil
}

// LoadFile reads a JSON records file.
func LoadFile(path string, opts *Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memsource: %w", err)
	}
	defer f.Close()
	return LoadJSON(f, opts)
}

// Replace swaps all records.
func (s *Source) Replace(records []Record) {
	aliases := make(map[string]string)
	indexKeys(aliases, records, s.fieldName)

	s.mx.Lock()
	defer s.mx.Unlock()
	s.records = slices.Clone(records)
	s.aliases = aliases
}

// Append adds records at the end.
func (s *Source) Append(records ...Record) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.records = append(s.records, records...)
	if s.aliases == nil {
		s.aliases = make(map[string]string)
	}
	indexKeys(s.aliases, records, s.fieldName)
}

// Len returns the number of records.
func (s *Source) Len() int {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.records)
}

// Columns returns the grid column ids of all record keys, sorted.
func (s *Source) Columns() []string {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return slices.Sorted(maps.Keys(s.aliases))
}

func indexKeys(aliases map[string]string, records []Record, fieldName func(string) string) {
	for _, r := range records {
		for k := range r {
			id := fieldName(k)
			if _, ok := aliases[id]; !ok {
				aliases[id] = k
			}
		}
	}
}

// Fetch implements gridsource.Fetcher: filter, sort, then slice the window.
// LastRow is set once the window reaches the end of the filtered records.
func (s *Source) Fetch(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[Record], error) {
	model, err := filter.Parse(req.FilterModel())
	if err != nil {
		return gridsource.Page[Record]{}, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	s.mx.RLock()
	aliases := maps.Clone(s.aliases)
	rows := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if model.Empty() || model.Match(lookup(r, aliases)) {
			rows = append(rows, r)
		}
	}
	s.mx.RUnlock()

	if err := ctx.Err(); err != nil {
		return gridsource.Page[Record]{}, err
	}

	if sort := req.SortModel(); len(sort) > 0 {
		slices.SortStableFunc(rows, func(a, b Record) int {
			for _, d := range sort {
				c := compareValues(lookup(a, aliases)(d.ColumnID), lookup(b, aliases)(d.ColumnID))
				if d.Direction == gridsource.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	total := len(rows)
	start, end := min(max(req.StartRow(), 0), total), min(req.EndRow(), total)
	if end < start {
		end = start
	}

	page := gridsource.NewPage(rows[start:end])
	if req.EndRow() >= total {
		page = page.WithLastRow(total)
	}

	s.logger.Debug("memsource fetch",
		"matched", total,
		"returned", end-start,
		"filtered", !model.Empty(),
	)
	return page, nil
}

// lookup resolves a grid column id in a record: the exact key first, then
// the key the payload encoder writes as the column id.
func lookup(r Record, aliases map[string]string) func(colID string) any {
	return func(colID string) any {
		if v, ok := r[colID]; ok {
			return v
		}
		if k, ok := aliases[colID]; ok {
			return r[k]
		}
		return nil
	}
}

// compareValues orders nil first, then numbers numerically, times
// chronologically, booleans false first and everything else in natural
// string order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if x, ok := asFloat(a); ok {
		if y, ok := asFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa == sb:
		return 0
	case sortorder.NaturalLess(sa, sb):
		return -1
	}
	return 1
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// String returns a short description for logs.
func (s *Source) String() string {
	return fmt.Sprintf("memsource(%d records)", s.Len())
}
