package gridsource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// HostRequest is the narrow capability view of one host get-rows request.
// It exposes only what the bridge needs: the requested window, sort list,
// filter model and the two completion handles.
//
// Accessors return ErrMissingField when the host omitted a field.
// Exactly one of Success or Fail must be called, exactly once; the bridge
// guarantees this for the requests it handles.
type HostRequest interface {
	StartRow() (int, error)
	EndRow() (int, error)
	SortModel() ([]SortModelItem, error)
	FilterModel() (json.RawMessage, error)

	// Success delivers the page. The payload is the only argument.
	Success(p Payload)

	// Fail signals failure. No detail crosses the boundary.
	Fail()
}

// SortModelItem is a host sort entry as sent by the grid.
type SortModelItem struct {
	ColID string `json:"colId" msgpack:"col_id" yaml:"colId"`
	Sort  string `json:"sort" msgpack:"sort" yaml:"sort"`
}

// Payload is the success value handed to the host.
type Payload struct {
	// RowData is the JSON array of encoded rows.
	RowData json.RawMessage `json:"rowData"`

	// LastRow is the total row count hint, omitted when unknown.
	LastRow *int `json:"lastRow,omitempty"`
}

// GetRowsParams is the serialized form of a host request, following the
// field names of ag-grid's IGetRowsParams. Row indexes are pointers so that
// a missing field can be told apart from zero.
type GetRowsParams struct {
	StartRow    *int            `json:"startRow" msgpack:"start_row"`
	EndRow      *int            `json:"endRow" msgpack:"end_row"`
	SortModel   []SortModelItem `json:"sortModel,omitempty" msgpack:"sort_model,omitempty"`
	FilterModel json.RawMessage `json:"filterModel,omitempty" msgpack:"filter_model,omitempty"`
}

// NewGetRowsParams builds params for a fully specified request.
func NewGetRowsParams(startRow, endRow int, sortModel []SortModelItem, filterModel json.RawMessage) GetRowsParams {
	return GetRowsParams{
		StartRow:    &startRow,
		EndRow:      &endRow,
		SortModel:   sortModel,
		FilterModel: filterModel,
	}
}

// ParseSortModel parses "col:desc,other:asc" (direction optional, asc by
// default) into host sort items. Used by command line tools.
func ParseSortModel(s string) ([]SortModelItem, error) {
	if s == "" {
		return nil, nil
	}
	var items []SortModelItem
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		item := SortModelItem{ColID: part, Sort: SortTokenAsc}
		if i := strings.LastIndexByte(part, ':'); i >= 0 {
			item.ColID, item.Sort = part[:i], part[i+1:]
		}
		if item.ColID == "" {
			return nil, fmt.Errorf("empty column in sort %q", part)
		}
		items = append(items, item)
	}
	return items, nil
}

// CallbackRequest is a HostRequest backed by decoded params and two Go
// callbacks. Transports build one per incoming request.
type CallbackRequest struct {
	Params    GetRowsParams
	OnSuccess func(Payload)
	OnFail    func()
}

var _ HostRequest = (*CallbackRequest)(nil)

// StartRow implements HostRequest.
func (r *CallbackRequest) StartRow() (int, error) {
	if r.Params.StartRow == nil {
		return 0, ErrMissingField
	}
	return *r.Params.StartRow, nil
}

// EndRow implements HostRequest.
func (r *CallbackRequest) EndRow() (int, error) {
	if r.Params.EndRow == nil {
		return 0, ErrMissingField
	}
	return *r.Params.EndRow, nil
}

// SortModel implements HostRequest. A missing sort model means unsorted.
func (r *CallbackRequest) SortModel() ([]SortModelItem, error) {
	return r.Params.SortModel, nil
}

// FilterModel implements HostRequest. A missing filter model means unfiltered.
func (r *CallbackRequest) FilterModel() (json.RawMessage, error) {
	return r.Params.FilterModel, nil
}

// Success implements HostRequest.
func (r *CallbackRequest) Success(p Payload) {
	if r.OnSuccess != nil {
		r.OnSuccess(p)
	}
}

// Fail implements HostRequest.
func (r *CallbackRequest) Fail() {
	if r.OnFail != nil {
		r.OnFail()
	}
}

// Outcome is the resolved state of a request created by NewAwaitRequest.
type Outcome struct {
	Payload Payload
	OK      bool
}

// NewAwaitRequest returns a request whose completion is delivered on the
// returned channel. The channel is buffered, so completion never blocks the
// caller even if nobody is waiting anymore.
func NewAwaitRequest(params GetRowsParams) (*CallbackRequest, <-chan Outcome) {
	done := make(chan Outcome, 1)
	req := &CallbackRequest{
		Params: params,
		OnSuccess: func(p Payload) {
			select {
			case done <- Outcome{Payload: p, OK: true}:
			default:
			}
		},
		OnFail: func() {
			select {
			case done <- Outcome{}:
			default:
			}
		},
	}
	return req, done
}

// Await waits for the outcome of a request created by NewAwaitRequest. An
// outcome that is already delivered wins over a done ctx, so a request
// resolved by a synchronous data source is never reported as abandoned.
func Await(ctx context.Context, done <-chan Outcome) (Outcome, error) {
	select {
	case out := <-done:
		return out, nil
	default:
	}
	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
