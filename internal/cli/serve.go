package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/gridsource-go/catalog"
	"github.com/hugr-lab/gridsource-go/flight"
	"github.com/hugr-lab/gridsource-go/httphost"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured sources over HTTP and Arrow Flight",
		Long: `The serve command builds every configured source and serves them:

  GET  /sources                 lists the sources
  GET  /sources/{name}/options  returns the grid options of a source
  POST /sources/{name}/rows     runs one get-rows request

When flight.address is set, sources with a schema are also served over
Arrow Flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, logger)
		},
	}
}

// Serve runs the configured hosts until ctx is done, then shuts them down
// and destroys every data source.
func Serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	cat, err := BuildCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := catalog.Destroy(context.Background(), cat, logger); err != nil {
			logger.Error("Failed to destroy sources", "error", err)
		}
	}()

	authn := authenticator(cfg)

	handler, err := httphost.NewHandler(httphost.Config{
		Catalog:            cat,
		Auth:               authn,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		DisableCompression: cfg.HTTP.DisableCompression,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	defer handler.Close()

	httpLis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.Address, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var (
		grpcServer *grpc.Server
		flightLis  net.Listener
	)
	if cfg.Flight.Address != "" {
		fc := flight.Config{
			Catalog:        cat,
			Auth:           authn,
			Address:        cfg.Flight.Advertise,
			RequestTimeout: cfg.Flight.RequestTimeout,
			MaxMessageSize: cfg.Flight.MaxMessageSize,
			Logger:         logger,
		}
		srv, err := flight.NewServer(fc)
		if err != nil {
			httpLis.Close()
			return err
		}
		flightLis, err = net.Listen("tcp", cfg.Flight.Address)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.Flight.Address, err)
		}
		grpcServer = grpc.NewServer(flight.ServerOptions(fc)...)
		srv.Register(grpcServer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP host listening", "address", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("Flight host listening", "address", flightLis.Addr().String())
			if err := grpcServer.Serve(flightLis); err != nil {
				return fmt.Errorf("flight: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
