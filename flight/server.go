// Package flight serves a catalog of grid data sources over Arrow Flight.
//
// Each source with an Arrow schema is a flight. A ticket names the source
// and the row window; DoGet runs one get-rows request through the source's
// data source and streams the page as a single record batch. The row count
// hint travels as app metadata of that batch ({"lastRow":n}).
//
//	grpcServer := grpc.NewServer(flight.ServerOptions(config)...)
//	srv, err := flight.NewServer(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Register(grpcServer)
package flight

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
)

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("flight: invalid config")

// DefaultWindow is the number of rows in the ticket of a flight listed
// without a window, when the source options do not set cacheBlockSize.
const DefaultWindow = 100

// Config contains configuration for the Flight server.
type Config struct {
	// Catalog provides the sources to serve.
	// REQUIRED: Must not be nil.
	Catalog catalog.Catalog

	// Auth authenticates calls with bearer tokens. Install the interceptors
	// returned by ServerOptions for it to take effect.
	// OPTIONAL: If nil, no authentication is performed.
	Auth auth.Authenticator

	// Allocator for Arrow memory.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Address is the public location advertised in flight endpoints.
	// OPTIONAL: endpoints carry no location when empty.
	Address string

	// RequestTimeout bounds how long DoGet waits for a page.
	// OPTIONAL: If 0, DoGet waits until the client cancels.
	RequestTimeout time.Duration

	// MaxMessageSize sets the gRPC send and receive limits in bytes.
	// OPTIONAL: gRPC defaults apply if 0.
	MaxMessageSize int

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Server implements the Flight service handlers.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	catalog   catalog.Catalog
	auth      auth.Authenticator
	allocator memory.Allocator
	address   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewServer creates a Flight server for the catalog.
func NewServer(config Config) (*Server, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		catalog:   config.Catalog,
		auth:      config.Auth,
		allocator: allocator,
		address:   config.Address,
		timeout:   config.RequestTimeout,
		logger:    logger,
	}, nil
}

// validateConfig checks that required Config fields are valid.
func validateConfig(config Config) error {
	if config.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if config.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	return nil
}

// Register registers the Flight service on the provided gRPC server.
func (s *Server) Register(grpcServer *grpc.Server) {
	flight.RegisterFlightServiceServer(grpcServer, s)
	s.logger.Info("Grid source Flight server registered", "has_auth", s.auth != nil)
}

// ServerOptions returns gRPC server options with the metadata and
// authentication interceptors and message size limits of config.
func ServerOptions(config Config) []grpc.ServerOption {
	metaUnary, metaStream := metadataInterceptors()
	unary := []grpc.UnaryServerInterceptor{metaUnary}
	stream := []grpc.StreamServerInterceptor{metaStream}
	if config.Auth != nil {
		unary = append(unary, auth.UnaryServerInterceptor(config.Auth))
		stream = append(stream, auth.StreamServerInterceptor(config.Auth))
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}
	return opts
}
