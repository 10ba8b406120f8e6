// Package health serves liveness and readiness over HTTP for the
// controller deployment.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const DefaultHealthzSockPort = 50000

type Pinger interface {
	Ping(context.Context) error
}

type Readier interface {
	Ready() bool
}

// AlwaysReady is the Readier for components with no warm-up phase.
type AlwaysReady struct{}

func (AlwaysReady) Ready() bool { return true }

type Server struct {
	mux  *http.ServeMux
	svr  *http.Server
	port int
}

func NewServer(p Pinger, r Readier, port int) *Server {
	m := http.NewServeMux()
	m.HandleFunc("/liveness", func(w http.ResponseWriter, req *http.Request) {
		if err := p.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	m.HandleFunc("/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if r.Ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	return &Server{mux: m, port: port}
}

func (s *Server) Serve() error {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return err
	}
	s.svr = &http.Server{Handler: s.mux}
	return s.svr.Serve(l)
}

func (s *Server) Close() error {
	if s.svr == nil {
		return errors.New("close on server that isn't serving")
	}
	return s.svr.Close()
}
