package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the /metrics endpoint on a dedicated address, grounded
// on the teacher's Api (same bind-and-serve shape), adapted to a plain
// *http.Server so cmd/indexer/main.go can shut it down alongside every
// other component on SIGINT/SIGTERM.
type Server struct {
	addr   string
	logger *logrus.Entry
	srv    *http.Server
}

// NewServer constructs a Server bound to addr (e.g. ":9100").
func NewServer(addr string, logger *logrus.Entry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		addr:   addr,
		logger: logger,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.addr).Info("metrics: listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
