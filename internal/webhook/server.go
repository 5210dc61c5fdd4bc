package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arrbiter/arrbiter/internal/logging"
)

// statusResponse is the JSON body returned for every webhook request.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server exposes the webhook endpoints over HTTP.
type Server struct {
	echo      *echo.Echo
	processor *Processor
	listen    string
	logger    *slog.Logger
}

// NewServer builds the HTTP surface around a processor.
func NewServer(processor *Processor, listen string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		processor: processor,
		listen:    listen,
		logger:    logging.ForService("webhook-server"),
	}

	e.POST("/webhook/:app", s.handleWebhook)
	e.GET("/healthz", s.handleHealthz)

	return s
}

// SetAccessLogger records one line per handled request to the given logger,
// typically a rotated file logger kept as a delivery audit trail.
func (s *Server) SetAccessLogger(logger *slog.Logger) {
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Message: "alive"})
}

// handleWebhook routes a delivery to the per-app processor. Unknown apps
// get a 404; payloads that fail validation get a 400 with no side effects.
func (s *Server) handleWebhook(c echo.Context) error {
	app := c.Param("app")
	ctx := c.Request().Context()

	var outcome Outcome
	switch app {
	case "sonarr":
		var event SonarrEvent
		if err := c.Bind(&event); err != nil {
			return c.JSON(http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON payload"})
		}
		outcome = s.processor.ProcessSonarr(ctx, &event)
	case "radarr":
		var event RadarrEvent
		if err := c.Bind(&event); err != nil {
			return c.JSON(http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON payload"})
		}
		outcome = s.processor.ProcessRadarr(ctx, &event)
	case "readarr":
		var event ReadarrEvent
		if err := c.Bind(&event); err != nil {
			return c.JSON(http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON payload"})
		}
		outcome = s.processor.ProcessReadarr(ctx, &event)
	default:
		return c.JSON(http.StatusNotFound, statusResponse{Status: "error", Message: "unknown application"})
	}

	code := http.StatusOK
	if !outcome.OK {
		code = http.StatusBadRequest
	}
	return c.JSON(code, statusResponse{Status: outcome.Status, Message: outcome.Message})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting webhook server", "listen", s.listen)
	err := s.echo.Start(s.listen)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests with a short grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
