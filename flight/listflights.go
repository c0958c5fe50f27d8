package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/gridsource-go/auth"
)

// ListFlights returns one FlightInfo per source that has an Arrow schema
// and that the caller may read. Each carries a PATH descriptor [source_name]
// and a ticket for the first window of the source.
//
// Criteria parameter is currently ignored (returns all sources).
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())
	logger := loggerFor(ctx, s.logger)

	sources, err := s.catalog.Sources(ctx)
	if err != nil {
		logger.Error("Failed to list sources", "error", err)
		return status.Errorf(codes.Internal, "failed to list sources: %v", err)
	}

	sent := 0
	for _, src := range sources {
		if src.ArrowSchema(nil) == nil {
			continue
		}
		if auth.AuthorizeSource(ctx, s.auth, src.Name()) != nil {
			continue
		}

		desc := &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{src.Name()},
		}
		info, err := s.flightInfo(src, desc, TicketData{Source: src.Name(), EndRow: window(src)})
		if err != nil {
			return err
		}
		if err := stream.Send(info); err != nil {
			logger.Error("Failed to send FlightInfo", "source", src.Name(), "error", err)
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
		sent++
	}

	logger.Debug("ListFlights completed", "flights", sent)
	return nil
}
