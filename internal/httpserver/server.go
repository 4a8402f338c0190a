package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	Port string
	// AllowedOrigins lists the hosts browsers may open /ws from. Empty means
	// same host only.
	AllowedOrigins []string
}

type Server struct {
	srv    *http.Server
	ws     *wsHandler
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger, svc Service, rooms Rooms, metrics Metrics) *Server {
	h := &handler{
		svc:    svc,
		rooms:  rooms,
		logger: logger,
	}
	ws := newWSHandler(svc, rooms, metrics, opts.AllowedOrigins, logger)

	httpSrv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           newRouter(logger, h, ws, metrics),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		srv:    httpSrv,
		ws:     ws,
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", l.Addr().String()))
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains HTTP requests and closes websocket connections, which
// Shutdown does not track.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	s.ws.close()
	return s.srv.Shutdown(ctx)
}
