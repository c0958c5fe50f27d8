// Package httphost serves a catalog of grid data sources over HTTP.
//
// A browser grid points its datasource at the rows endpoint; each getRows
// invocation becomes one POST carrying the IGetRowsParams fields:
//
//	GET  /sources                 list of sources
//	GET  /sources/{name}/options  grid options of a source
//	POST /sources/{name}/rows     {"startRow":0,"endRow":100,"sortModel":[...],"filterModel":{...}}
//
// A successful request answers 200 with {"rowData":[...],"lastRow":n}; a
// failed one answers 502 with an empty JSON object, mirroring the grid's
// failCallback which carries no detail.
package httphost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/zstd"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
	"github.com/hugr-lab/gridsource-go/internal/compress"
)

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("httphost: invalid config")

// maxRequestBody bounds the size of a rows request body.
const maxRequestBody = 1 << 20

// Config contains configuration for the HTTP host.
type Config struct {
	// Catalog provides the sources to serve.
	// REQUIRED: Must not be nil.
	Catalog catalog.Catalog

	// Auth authenticates requests with bearer tokens.
	// OPTIONAL: If nil, no authentication is performed.
	Auth auth.Authenticator

	// RequestTimeout bounds how long a rows request waits for its
	// completion. The data source context is cancelled on expiry.
	// OPTIONAL: If 0, the request waits until the client goes away.
	RequestTimeout time.Duration

	// DisableCompression turns off zstd response compression.
	// OPTIONAL: compression is negotiated through Accept-Encoding by default.
	DisableCompression bool

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Handler is the HTTP host. Call Close to release the compressor.
type Handler struct {
	catalog    catalog.Catalog
	auth       auth.Authenticator
	timeout    time.Duration
	compressor *compress.Codec
	logger     *slog.Logger
	mux        *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates the HTTP host.
func NewHandler(config Config) (*Handler, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidConfig)
	}
	if config.RequestTimeout < 0 {
		return nil, fmt.Errorf("%w: request timeout must not be negative", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		catalog: config.Catalog,
		auth:    config.Auth,
		timeout: config.RequestTimeout,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	if !config.DisableCompression {
		c, err := compress.NewCodec(zstd.SpeedDefault)
		if err != nil {
			return nil, err
		}
		h.compressor = c
	}

	h.mux.HandleFunc("GET /sources", h.listSources)
	h.mux.HandleFunc("GET /sources/{name}/options", h.sourceOptions)
	h.mux.HandleFunc("POST /sources/{name}/rows", h.getRows)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(h.auth, h.logger)(h.mux).ServeHTTP(w, r)
}

// Close releases resources held by the handler. It does not destroy the
// catalog's data sources.
func (h *Handler) Close() error {
	if h.compressor != nil {
		return h.compressor.Close()
	}
	return nil
}

// sourceInfo is an entry of the source list.
type sourceInfo struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.catalog.Sources(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, struct{}{})
		return
	}

	list := make([]sourceInfo, 0, len(sources))
	for _, s := range sources {
		if auth.AuthorizeSource(r.Context(), h.auth, s.Name()) != nil {
			continue
		}
		list = append(list, sourceInfo{Name: s.Name(), Comment: s.Comment()})
	}
	h.writeJSON(w, r, http.StatusOK, list)
}

func (h *Handler) sourceOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.GridOptions())
}

func (h *Handler) getRows(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var params gridsource.GetRowsParams
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Invalid rows request body", "source", s.Name(), "error", err)
		h.writeJSON(w, r, http.StatusBadRequest, struct{}{})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, done := gridsource.NewAwaitRequest(params)
	s.DataSource().GetRows(ctx, req)

	out, err := gridsource.Await(ctx, done)
	switch {
	case err != nil:
		h.logger.Debug("Rows request abandoned", "source", s.Name(), "error", err)
		h.writeJSON(w, r, http.StatusGatewayTimeout, struct{}{})
	case !out.OK:
		h.writeJSON(w, r, http.StatusBadGateway, struct{}{})
	default:
		h.writeJSON(w, r, http.StatusOK, out.Payload)
	}
}

// lookup resolves and authorizes the source named in the path. It writes
// the error response itself when it returns false.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (catalog.Source, bool) {
	name := r.PathValue("name")
	s, err := h.catalog.Source(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to look up source", "source", name, "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, struct{}{})
		return nil, false
	}
	if s == nil {
		h.writeJSON(w, r, http.StatusNotFound, struct{}{})
		return nil, false
	}
	if err := auth.AuthorizeSource(r.Context(), h.auth, name); err != nil {
		h.logger.Debug("Source access denied", "source", name, "identity", auth.IdentityFromContext(r.Context()))
		h.writeJSON(w, r, http.StatusForbidden, struct{}{})
		return nil, false
	}
	return s, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode response", "error", err)
		code, b = http.StatusInternalServerError, []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Vary", "Accept-Encoding")
	if h.compressor != nil && compress.Accepts(r.Header.Get("Accept-Encoding")) {
		w.Header().Set("Content-Encoding", compress.Encoding)
		b = h.compressor.Compress(b)
	}
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
