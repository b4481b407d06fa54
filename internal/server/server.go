// Package server exposes a Client behind an OpenAI-compatible HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/voocel/unillm"
)

const (
	maxBodyBytes        = 4 << 20 // 4 MiB, room for inline images
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	defaultAddr         = ":8080"
)

type Server struct {
	client  atomic.Pointer[unillm.Client]
	app     *echo.Echo
	address string
	logger  *slog.Logger
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg unillm.ServerConfig, client *unillm.Client, logger *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	srv := &Server{app: e, address: addr, logger: logger}
	srv.client.Store(client)
	srv.registerRoutes()
	return srv, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.app }

// Client returns the client serving new requests.
func (s *Server) Client() *unillm.Client { return s.client.Load() }

// SwapClient installs a new client for subsequent requests and returns the
// previous one. Requests already running keep the client they started with.
func (s *Server) SwapClient(client *unillm.Client) *unillm.Client {
	if client == nil {
		return nil
	}
	return s.client.Swap(client)
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.address)

	// No write timeout: streamed completions can run for minutes.
	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
	s.app.GET("/v1/models", s.handleModels)
	s.app.GET("/v1/capabilities/*", s.handleCapabilities)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req chatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	chatReq, opts, err := req.toUnified()
	if err != nil {
		return err
	}

	client := s.client.Load()
	ctx := c.Request().Context()
	if req.Stream {
		stream, err := client.OpenChatStream(ctx, req.Model, chatReq, opts)
		if err != nil {
			return toHTTPError(err)
		}
		return s.writeChatStream(c, stream)
	}

	resp, err := client.SendChat(ctx, req.Model, chatReq, opts)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, fromUnified(newCompletionID(), time.Now().Unix(), resp))
}

// handleModels lists one provider when ?provider= is set and every provider
// otherwise. Listing degrades to static tables, so it only fails on a bad
// provider name or a failing resolver.
func (s *Server) handleModels(c echo.Context) error {
	client := s.client.Load()
	ctx := c.Request().Context()

	kinds := unillm.AllAdapterKinds()
	if name := c.QueryParam("provider"); name != "" {
		kind, err := unillm.ParseAdapterKind(name)
		if err != nil {
			return toHTTPError(err)
		}
		kinds = []unillm.AdapterKind{kind}
	}

	cards := make([][]modelCard, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			models, src, err := client.ListModels(gctx, kind)
			if err != nil {
				return err
			}
			for _, m := range models {
				cards[i] = append(cards[i], modelCard{
					ID:      unillm.NewModelIden(kind, m.ID).String(),
					Object:  "model",
					OwnedBy: kind.String(),
					Source:  src.String(),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return toHTTPError(err)
	}

	list := modelList{Object: "list", Data: []modelCard{}}
	for _, group := range cards {
		list.Data = append(list.Data, group...)
	}
	return c.JSON(http.StatusOK, list)
}

// handleCapabilities takes the rest of the path as the model so names that
// contain slashes resolve.
func (s *Server) handleCapabilities(c echo.Context) error {
	model, err := s.client.Load().Capabilities(c.Param("*"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, model)
}

func newCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidRequest("request body is required")
		}
		return invalidRequest("invalid JSON payload: %v", err)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return invalidRequest("request body must contain a single JSON object")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func newErrorBody(reqErr requestError) errorBody {
	var payload errorBody
	payload.Error.Message = reqErr.Message
	payload.Error.Type = reqErr.Type
	payload.Error.Code = reqErr.Code
	return payload
}

func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, newErrorBody(reqErr))
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, newErrorBody(requestError{
			Message: fmt.Sprint(he.Message),
			Type:    "invalid_request_error",
		}))
		return
	}

	_ = c.JSON(http.StatusInternalServerError, newErrorBody(requestError{
		Message: "internal server error",
		Type:    "server_error",
	}))
}

// toHTTPError maps client errors onto gateway responses. Upstream 4xx
// statuses pass through; every other upstream failure is a 502.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	out := requestError{Message: err.Error(), Type: "upstream_error", Code: errorCode(err)}
	switch {
	case unillm.IsValidation(err), unillm.IsUnsupported(err):
		out.Status, out.Type = http.StatusBadRequest, "invalid_request_error"
	case unillm.IsCredentialMissing(err):
		out.Status, out.Type = http.StatusUnauthorized, "authentication_error"
	case unillm.IsTransportFailure(err):
		out.Status = unillm.StatusCode(err)
		if out.Status < 400 || out.Status >= 500 {
			out.Status = http.StatusBadGateway
		}
	case unillm.IsMalformed(err), unillm.IsStreamDecode(err):
		out.Status = http.StatusBadGateway
	default:
		out.Status, out.Type = http.StatusInternalServerError, "server_error"
	}
	return out
}

func errorCode(err error) string {
	var e *unillm.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return ""
}
