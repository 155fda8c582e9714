// Package httpapi exposes a small admin HTTP surface over the running V1
// client, for operators who want a liveness probe and a quick look at
// connection state without attaching to logs.
package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	v1client "github.com/alxayo/go-v1proto/internal/v1/client"
)

// Server wraps an Echo instance reporting on one Client.
type Server struct {
	echo   *echo.Echo
	client *v1client.Client
}

// New builds a configured Echo server exposing /healthz and /status.
func New(client *v1client.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, client: client}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/status", s.handleStatus)
}

// handleHealthz reports unconditional liveness: the process answering the
// request is itself the proof.
func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse shapes the admin /status payload.
type statusResponse struct {
	Host            string   `json:"host"`
	PendingCommands int      `json:"pending_commands"`
	RawHandlers     []string `json:"raw_handlers"`
	FramesIn        uint64   `json:"frames_in"`
	FramesOut       uint64   `json:"frames_out"`
}

func (s *Server) handleStatus(c echo.Context) error {
	stats := s.client.Stats()
	handlers := stats.HandlerNames
	if handlers == nil {
		handlers = []string{}
	}
	return c.JSON(http.StatusOK, statusResponse{
		Host:            byteToHex(s.client.Host()),
		PendingCommands: stats.PendingCommands,
		RawHandlers:     handlers,
		FramesIn:        stats.FramesIn,
		FramesOut:       stats.FramesOut,
	})
}

func byteToHex(b byte) string {
	const hexDigits = "0123456789abcdef"
	return "0x" + string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
}

// Start listens on addr until ctx is cancelled, then performs a graceful
// shutdown allowing any in-flight request to complete.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.echo.Shutdown(context.Background())
	}
}
