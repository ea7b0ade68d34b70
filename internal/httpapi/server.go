// Package httpapi is the HTTP surface described as an external collaborator
// in spec.md §6: a thin client of the core built on net/http and
// http.ServeMux, serving collection management, record ingest/fetch,
// search, and dictionary download. Graceful shutdown follows
// distr1-distri's cmd/distri/export.go pattern: one errgroup goroutine
// serves, another waits on ctx and calls Shutdown.
package httpapi

import (
	"context"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/5IGI0/Masstuffy/internal/auth"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
	masstuffy "github.com/5IGI0/Masstuffy"
)

// Server wires the core (reposvc.Root), the external index and the bearer
// token checker into an http.Handler.
type Server struct {
	root    *reposvc.Root
	idx     index.Client
	checker *auth.Checker
	log     *zap.SugaredLogger

	mux *http.ServeMux
}

// New builds a Server and registers every route in spec.md §6's table.
func New(root *reposvc.Root, idx index.Client, checker *auth.Checker, log *zap.SugaredLogger) *Server {
	s := &Server{root: root, idx: idx, checker: checker, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve listens on addr and serves until ctx is cancelled, at which point it
// shuts down gracefully and returns once in-flight requests have drained.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: s}
	s.log.Infow("serving masstuffy http api", "addr", ln.Addr().String(), "version", masstuffy.Version)

	var eg errgroup.Group
	eg.Go(func() error {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	return eg.Wait()
}
