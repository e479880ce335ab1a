package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/domainstack/pkg/buildinfo"
	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/errors"
	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/observability"
	"github.com/matzehuels/domainstack/pkg/pipeline"
)

const (
	// maxRequestBytes bounds the size of a compose request body.
	maxRequestBytes = 1 << 20

	defaultAddr           = "127.0.0.1:8080"
	defaultRequestTimeout = 5 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// ComposeRequest is the body of POST /v1/compose.
type ComposeRequest struct {
	Description json.RawMessage  `json:"description"`
	Options     pipeline.Options `json:"options"`
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

// server serves compositions of datasets under root.
type server struct {
	runner *pipeline.Runner
	root   string
	logger *log.Logger
}

// newHandler returns the HTTP API. Description paths are resolved against
// root and may not leave it.
func newHandler(runner *pipeline.Runner, root string, logger *log.Logger, timeout time.Duration) http.Handler {
	s := &server{runner: runner, root: root, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compose", s.compose)
	})
	return r
}

// observe reports every request to the server hooks.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.Server().OnRequest(r.Context(), r.Method, r.URL.Path)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.Server().OnResponse(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Current()})
}

func (s *server) compose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if len(req.Description) == 0 {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "request has no description"))
		return
	}

	desc, err := dsio.ReadDescription(bytes.NewReader(req.Description), dsio.FormatJSON)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	desc.Resolve(s.root)
	if err := desc.Within(s.root); err != nil {
		s.fail(w, r, err)
		return
	}

	opts := req.Options
	opts.Logger = s.logger.With("request_id", middleware.GetReqID(r.Context()))
	export, hit, err := s.runner.ExecuteExport(r.Context(), desc, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cacheStatus := "miss"
	if hit {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Cache", cacheStatus)
	writeJSON(w, http.StatusOK, export)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

// statusOf maps an error code to an HTTP status.
func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidUnit, errors.ErrCodeInvalidSelection,
		errors.ErrCodeInvalidPath, errors.ErrCodeInvalidPolicy, errors.ErrCodeInvalidShape,
		errors.ErrCodeUnitContext:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidState:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		root     string
		noCache  bool
		inMemory bool
		prefix   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compositions over HTTP",
		Long: `Serve compositions over HTTP.

POST /v1/compose takes {"description": {...}, "options": {...}} and returns
the placement export. Dataset paths in descriptions are resolved against
--root and may not leave it. GET /healthz reports liveness.

Set DOMAINSTACK_REDIS_ADDR to share the sample cache between servers, and
--key-prefix to keep deployments sharing one redis apart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache, inMemory)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()
			if prefix != "" {
				runner.Keyer = cache.NewScopedKeyer(runner.Keyer, prefix)
				runner.Loader.Keyer = runner.Keyer
			}

			observability.SetServerHooks(observability.NewLogHooks(c.Logger))

			srv := &http.Server{
				Addr:              addr,
				Handler:           newHandler(runner, root, c.Logger, timeout),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			printSuccess("Serving on %s", StyleHighlight.Render("http://"+addr))
			printDetail("Root: %s", root)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			c.Logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&root, "root", ".", "directory dataset paths are resolved against")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&inMemory, "in-memory-cache", true, "keep loaded datasets in memory")
	cmd.Flags().StringVar(&prefix, "key-prefix", "", "prefix for cache keys, e.g. domainstack:prod: when sharing redis")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultRequestTimeout, "per-request timeout")
	return cmd
}
