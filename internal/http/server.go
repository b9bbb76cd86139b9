// README: HTTP server lifecycle around the gin router.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"petride/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

type Server struct {
	srv *http.Server
	log logger.ILogger
}

func NewServer(addr string, handler http.Handler, log logger.ILogger) *Server {
	return &Server{
		srv: &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: readHeaderTimeout},
		log: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Hijacked websocket connections are not tracked here; the hub closes them.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
