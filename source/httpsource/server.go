// Package httpsource exposes the relay as a small HTTP event source. The
// identity provider, or anything standing in for it, POSTs user snapshots to
// /events/{created,updated,deleted} and receives the relay result as JSON.
package httpsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/goliatone/go-auth-relay/core"
)

const defaultBodyLimit = "1M"

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBodyLimit caps request bodies, in echo's size notation ("1M", "512K").
func WithBodyLimit(limit string) Option {
	return func(s *Server) {
		if limit != "" {
			s.bodyLimit = limit
		}
	}
}

type Server struct {
	echo      *echo.Echo
	logger    core.Logger
	bodyLimit string

	mu      sync.RWMutex
	handler core.Handler
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:    glog.Nop(),
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(s.bodyLimit))

	e.GET("/health", s.health)
	e.POST("/events/:kind", s.handleEvent)

	s.echo = e
	return s
}

// Register installs the event handler. A server accepts exactly one handler.
func (s *Server) Register(handler core.Handler) error {
	if handler == nil {
		return core.ConfigurationError("httpsource: handler is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return core.ConfigurationError("httpsource: handler already registered")
	}
	s.handler = handler
	return nil
}

// Handler returns the http.Handler serving the event routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("event source listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) current() core.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

func (s *Server) health(c echo.Context) error {
	status := "ok"
	if s.current() == nil {
		status = "no_handler"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

type updatePayload struct {
	Before *core.UserRecord `json:"before"`
	After  *core.UserRecord `json:"after"`
}

// EventResponse is the JSON body returned for every event request.
type EventResponse struct {
	State      string `json:"state"`
	Stage      string `json:"stage,omitempty"`
	EventKind  string `json:"event_kind,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Response   any    `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
	TextCode   string `json:"text_code,omitempty"`
}

func (s *Server) handleEvent(c echo.Context) error {
	kind, err := core.ParseEventKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, EventResponse{
			State:    string(core.StateFailed),
			Error:    err.Error(),
			TextCode: core.ErrorInvalidEvent,
		})
	}

	handler := s.current()
	if handler == nil {
		return c.JSON(http.StatusServiceUnavailable, EventResponse{
			State:     string(core.StateFailed),
			EventKind: string(kind),
			Error:     "httpsource: no handler registered",
			TextCode:  core.ErrorConfiguration,
		})
	}

	raw, err := bindEvent(c, kind)
	if err != nil {
		return c.JSON(http.StatusBadRequest, EventResponse{
			State:     string(core.StateFailed),
			EventKind: string(kind),
			Error:     err.Error(),
			TextCode:  core.ErrorInvalidEvent,
		})
	}

	result, err := handler.Handle(c.Request().Context(), raw)
	body := NewEventResponse(kind, result, err)
	if err != nil {
		s.logger.Warn("event relay failed",
			"event_kind", string(kind),
			"stage", string(result.Stage),
			"error_text_code", body.TextCode,
		)
		return c.JSON(statusFor(err), body)
	}
	return c.JSON(http.StatusOK, body)
}

// NewEventResponse renders a relay result the way the event endpoints return it.
func NewEventResponse(kind core.EventKind, result core.Result, err error) EventResponse {
	body := EventResponse{
		State:      string(result.State),
		Stage:      string(result.Stage),
		EventKind:  string(kind),
		UserID:     result.UserID,
		DeliveryID: result.DeliveryID,
	}
	if err != nil {
		body.State = string(core.StateFailed)
		body.Error = err.Error()
		body.TextCode = core.TextCodeOf(err)
		return body
	}
	body.Response = result.Response
	return body
}

func bindEvent(c echo.Context, kind core.EventKind) (core.RawEvent, error) {
	switch kind {
	case core.EventKindUpdated:
		var payload updatePayload
		if err := c.Bind(&payload); err != nil {
			return core.RawEvent{}, fmt.Errorf("httpsource: decode update payload: %w", err)
		}
		return core.RawEvent{Kind: kind, Before: payload.Before, After: payload.After}, nil
	default:
		var user core.UserRecord
		if err := c.Bind(&user); err != nil {
			return core.RawEvent{}, fmt.Errorf("httpsource: decode user payload: %w", err)
		}
		if kind == core.EventKindDeleted {
			return core.DeletedEvent(user), nil
		}
		return core.CreatedEvent(user), nil
	}
}

func statusFor(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code >= http.StatusBadRequest && rich.Code < 600 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

var _ core.EventSource = (*Server)(nil)
