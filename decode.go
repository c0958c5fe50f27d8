package gridsource

import (
	"fmt"
	"slices"
)

// DecodeRequest converts a host request handle into a RowRangeRequest.
//
// Sort entries are decoded in the order given (primary first). An unknown
// direction token or a missing field is a *DecodeError; nothing is
// defaulted. Decoding has no side effects and never touches the completion
// handles.
func DecodeRequest(req HostRequest) (RowRangeRequest, error) {
	startRow, err := req.StartRow()
	if err != nil {
		return RowRangeRequest{}, &DecodeError{Field: "startRow", Err: err}
	}
	if startRow < 0 {
		return RowRangeRequest{}, &DecodeError{Field: "startRow", Err: fmt.Errorf("%w: %d", ErrInvalidRow, startRow)}
	}

	endRow, err := req.EndRow()
	if err != nil {
		return RowRangeRequest{}, &DecodeError{Field: "endRow", Err: err}
	}
	if endRow < 0 {
		return RowRangeRequest{}, &DecodeError{Field: "endRow", Err: fmt.Errorf("%w: %d", ErrInvalidRow, endRow)}
	}

	items, err := req.SortModel()
	if err != nil {
		return RowRangeRequest{}, &DecodeError{Field: "sortModel", Err: err}
	}
	sortModel, err := decodeSortModel(items)
	if err != nil {
		return RowRangeRequest{}, err
	}

	filterModel, err := req.FilterModel()
	if err != nil {
		return RowRangeRequest{}, &DecodeError{Field: "filterModel", Err: err}
	}

	return RowRangeRequest{
		startRow:    startRow,
		endRow:      endRow,
		sortModel:   sortModel,
		filterModel: slices.Clone(filterModel),
	}, nil
}

func decodeSortModel(items []SortModelItem) ([]SortDirective, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]SortDirective, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("sortModel[%d]", i)
		if item.ColID == "" {
			return nil, &DecodeError{Field: field + ".colId", Err: ErrMissingField}
		}
		dir, err := ParseSortDirection(item.Sort)
		if err != nil {
			return nil, &DecodeError{Field: field + ".sort", Err: err}
		}
		out = append(out, SortDirective{ColumnID: item.ColID, Direction: dir})
	}
	return out, nil
}
