// README: HTTP server lifecycle; serves the router until the context is cancelled.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"boleia/internal/log"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Run blocks until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	l := log.Ctx(ctx)
	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", s.srv.Addr).Msg("http server listening")
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
	l.Info().Msg("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
