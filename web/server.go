// Package web serves the prediction pipeline over HTTP.
//
// GET / returns the upload form. POST /upload takes a CSV or Excel file, adds
// a Predicted_DT column and answers with an HTML table and a plot of the log
// tracks.
//
// Example:
//
//	predictor, err := pipeline.NewPredictPipeline(cfg.Data, logger)
//	if err != nil {
//	    return err
//	}
//	srv := web.NewServer(cfg, predictor, logger)
//	return srv.Run(ctx)
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/pipeline"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
)

const (
	// PredictedColumn holds the model output.
	PredictedColumn = "Predicted_DT"
	// RealColumn is the new name of a measured DT column found in the upload.
	RealColumn = "Real_DT"
)

// Server accepts log uploads and renders predictions.
type Server struct {
	cfg       config.ServerConfig
	depth     string
	target    string
	required  []string
	predictor pipeline.Predictor
	logger    log.Logger
	router    *mux.Router
}

// NewServer builds the router. predictor is shared by concurrent requests.
func NewServer(cfg *config.Config, predictor pipeline.Predictor, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	required := append([]string{cfg.Data.DepthColumn}, cfg.Data.FeatureColumns...)
	s := &Server{
		cfg:       cfg.Server,
		depth:     cfg.Data.DepthColumn,
		target:    cfg.Data.TargetColumn,
		required:  required,
		predictor: predictor,
		logger:    logger.With(log.ComponentKey, "web"),
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID, s.accessLog, s.recoverer)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
