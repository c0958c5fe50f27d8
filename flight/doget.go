package flight

import (
	"context"
	"encoding/json"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gridsource "github.com/hugr-lab/gridsource-go"
)

// RowsMetadata is the app metadata sent with the record batch of a page.
type RowsMetadata struct {
	LastRow *int `json:"lastRow,omitempty"`
}

// DoGet streams the page of one get-rows request.
//
// The handler:
//  1. Decodes the ticket to get the source and request
//  2. Runs the request through the source's data source
//  3. Converts the page to a record batch with the source schema
//  4. Streams it with the row count hint as app metadata
//
// A failed request yields codes.Unavailable without detail; the detail is
// reported by the data source itself.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())
	logger := loggerFor(ctx, s.logger)

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		logger.Debug("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	src, err := s.source(ctx, td.Source)
	if err != nil {
		return err
	}
	schema := src.ArrowSchema(td.Columns)

	logger.Debug("DoGet request",
		"source", td.Source,
		"start_row", td.StartRow,
		"end_row", td.EndRow,
		"num_fields", schema.NumFields(),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, done := gridsource.NewAwaitRequest(td.Params())
	src.DataSource().GetRows(ctx, req)
	out, err := gridsource.Await(ctx, done)
	if err != nil {
		return status.FromContextError(err).Err()
	}
	if !out.OK {
		return status.Error(codes.Unavailable, "row request failed")
	}

	record, err := RecordFromRows(s.allocator, schema, out.Payload.RowData)
	if err != nil {
		logger.Error("Page does not match source schema", "source", td.Source, "error", err)
		return status.Errorf(codes.Internal, "%v", err)
	}
	defer record.Release()

	meta, err := json.Marshal(RowsMetadata{LastRow: out.Payload.LastRow})
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode metadata: %v", err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(schema), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	if err := writer.WriteWithAppMetadata(record, meta); err != nil {
		logger.Error("Failed to write record batch", "source", td.Source, "error", err)
		return status.Errorf(codes.Internal, "failed to write batch: %v", err)
	}

	logger.Debug("DoGet completed",
		"source", td.Source,
		"rows", record.NumRows(),
		"has_last_row", out.Payload.LastRow != nil,
	)
	return nil
}
