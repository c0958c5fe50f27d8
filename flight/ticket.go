package flight

import (
	"encoding/json"
	"fmt"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/internal/msgpack"
)

// TicketData represents the decoded content of a Flight ticket: one
// get-rows request against a source.
type TicketData struct {
	// Source is the catalog source name.
	Source string `msgpack:"source"`

	// StartRow and EndRow delimit the half-open row window.
	StartRow int `msgpack:"start_row"`
	EndRow   int `msgpack:"end_row"`

	// SortModel in grid form (optional).
	SortModel []gridsource.SortModelItem `msgpack:"sort_model,omitempty"`

	// FilterModel is the grid filter model as JSON (optional).
	FilterModel json.RawMessage `msgpack:"filter_model,omitempty"`

	// Columns to project (optional, nil means all columns).
	Columns []string `msgpack:"columns,omitempty"`
}

// Params converts the ticket to host request params.
func (td *TicketData) Params() gridsource.GetRowsParams {
	return gridsource.NewGetRowsParams(td.StartRow, td.EndRow, td.SortModel, td.FilterModel)
}

func (td *TicketData) validate() error {
	if td.Source == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if td.StartRow < 0 {
		return fmt.Errorf("start_row must be non-negative, got %d", td.StartRow)
	}
	if td.EndRow < td.StartRow {
		return fmt.Errorf("end_row %d is before start_row %d", td.EndRow, td.StartRow)
	}
	return nil
}

// EncodeTicket creates an opaque MessagePack ticket.
func EncodeTicket(td TicketData) ([]byte, error) {
	if err := td.validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(td)
}

// DecodeTicket parses an opaque ticket.
// Returns error if ticket is invalid or cannot be decoded.
func DecodeTicket(ticketBytes []byte) (*TicketData, error) {
	if len(ticketBytes) == 0 {
		return nil, fmt.Errorf("ticket cannot be empty")
	}

	td, err := msgpack.Unmarshal[TicketData](ticketBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}
	if err := td.validate(); err != nil {
		return nil, err
	}
	return &td, nil
}

// RowsCommand is the JSON command of a CMD flight descriptor: a get-rows
// request in the grid's IGetRowsParams shape plus the source and an
// optional projection.
//
//	{"source":"users","startRow":0,"endRow":100,"sortModel":[{"colId":"name","sort":"asc"}]}
type RowsCommand struct {
	Source string `json:"source"`
	gridsource.GetRowsParams
	Columns []string `json:"columns,omitempty"`
}

// ticketData converts the command to a ticket, defaulting a missing window
// to the first window rows.
func (c *RowsCommand) ticketData(window int) TicketData {
	td := TicketData{
		Source:      c.Source,
		EndRow:      window,
		SortModel:   c.SortModel,
		FilterModel: c.FilterModel,
		Columns:     c.Columns,
	}
	if c.StartRow != nil {
		td.StartRow = *c.StartRow
		td.EndRow = td.StartRow + window
	}
	if c.EndRow != nil {
		td.EndRow = *c.EndRow
	}
	return td
}
