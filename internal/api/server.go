package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/datallboy/nzbweaver/internal/api/controllers"
	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/labstack/echo/v5"
)

const shutdownTimeout = 5 * time.Second

// Server serves the status API until its context is cancelled.
type Server struct {
	app *app.Context
	srv *http.Server
	ln  net.Listener
}

// NewServer binds addr right away so a busy port is reported before the
// download starts.
func NewServer(app *app.Context, addr string, src controllers.StatusSource) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	RegisterRoutes(e, app, src)

	return &Server{
		app: app,
		srv: &http.Server{Handler: e, ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
	}, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until ctx is done, then shuts the listener down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	s.app.Logger.Info("Status API listening on http://%s", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
