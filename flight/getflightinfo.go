package flight

import (
	"context"
	"encoding/json"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
)

// GetFlightInfo returns schema metadata and a ticket for a row window.
//
// The descriptor is either:
//   - PATH [source_name]: the first window of the source, unsorted
//   - CMD: a JSON RowsCommand selecting window, sort, filter and columns
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	logger := loggerFor(ctx, s.logger)
	logger.Debug("GetFlightInfo called", "type", desc.GetType())

	var cmd RowsCommand
	switch desc.GetType() {
	case flight.DescriptorPATH:
		path := desc.GetPath()
		if len(path) != 1 {
			return nil, status.Error(codes.InvalidArgument, "path must contain exactly 1 element: [source_name]")
		}
		cmd.Source = path[0]
	case flight.DescriptorCMD:
		if err := json.Unmarshal(desc.GetCmd(), &cmd); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid rows command: %v", err)
		}
	default:
		return nil, status.Error(codes.InvalidArgument, "descriptor must be PATH or CMD type")
	}

	src, err := s.source(ctx, cmd.Source)
	if err != nil {
		return nil, err
	}

	info, err := s.flightInfo(src, desc, cmd.ticketData(window(src)))
	if err != nil {
		logger.Debug("GetFlightInfo failed", "source", cmd.Source, "error", err)
		return nil, err
	}
	return info, nil
}

// source looks up and authorizes a source that can be served over Flight.
func (s *Server) source(ctx context.Context, name string) (catalog.Source, error) {
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "source name cannot be empty")
	}
	src, err := s.catalog.Source(ctx, name)
	if err != nil {
		s.logger.Error("Failed to get source from catalog", "source", name, "error", err)
		return nil, status.Errorf(codes.Internal, "failed to get source: %v", err)
	}
	if src == nil {
		return nil, status.Errorf(codes.NotFound, "source not found: %s", name)
	}
	if err := auth.AuthorizeSource(ctx, s.auth, name); err != nil {
		return nil, auth.StatusError(err)
	}
	if src.ArrowSchema(nil) == nil {
		return nil, status.Errorf(codes.FailedPrecondition, "source %s has no Arrow schema", name)
	}
	return src, nil
}

func (s *Server) flightInfo(src catalog.Source, desc *flight.FlightDescriptor, td TicketData) (*flight.FlightInfo, error) {
	ticket, err := EncodeTicket(td)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid rows request: %v", err)
	}

	endpoint := &flight.FlightEndpoint{
		Ticket: &flight.Ticket{Ticket: ticket},
	}
	if s.address != "" {
		endpoint.Location = []*flight.Location{{Uri: s.address}}
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(src.ArrowSchema(td.Columns), s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{endpoint},
		TotalRecords:     -1, // Unknown until the page is fetched
		TotalBytes:       -1,
	}, nil
}

// window is the default number of rows in a ticket for src.
func window(src catalog.Source) int {
	if o := src.GridOptions(); o.CacheBlockSize != nil && *o.CacheBlockSize > 0 {
		return *o.CacheBlockSize
	}
	return DefaultWindow
}
