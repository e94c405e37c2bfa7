package node

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"
	"github.com/gin-gonic/gin"

	"reserves.dev/verifier/node/store"
	"reserves.dev/verifier/reserves"
)

//go:embed web/index.html
var indexHTML []byte

const shutdownTimeout = 5 * time.Second

// ProofRequest is the body of POST /proof.
type ProofRequest struct {
	Addresses []string `json:"addresses"`
	Message   string   `json:"message"`
	ProofPSBT string   `json:"proof_psbt"`
}

type ProofResponse struct {
	Spendable uint64 `json:"spendable"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatsResponse struct {
	Network string        `json:"network,omitempty"`
	Tallies []store.Tally `json:"tallies"`
}

// Server is the HTTP front of a Verifier.
type Server struct {
	cfg      Config
	verifier *reserves.Verifier
	db       *store.DB
	metrics  *Metrics
	logs     *Loggers
	router   *gin.Engine
}

// NewServer wires the routes. db may be nil, in which case outcomes are not
// persisted and /stats reports 503.
func NewServer(cfg Config, v *reserves.Verifier, db *store.DB, m *Metrics, logs *Loggers) *Server {
	if logs == nil {
		logs = DisabledLoggers()
	}
	if m == nil {
		m = NewMetrics()
	}
	s := &Server{cfg: cfg, verifier: v, db: db, metrics: m, logs: logs}

	router := gin.New()
	router.Use(requestLogger(logs.HTTP), gin.Recovery())
	router.GET("/", s.Index)
	router.GET("/health", s.Health)
	router.GET("/stats", s.Stats)
	router.GET("/prometheus", gin.WrapH(m.Handler()))
	router.POST("/proof", s.CheckProof)
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logs.Node.Infof("Starting HTTP server at http://%s", s.cfg.BindAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logs.Node.Infof("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Stats(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "stats store disabled"})
		return
	}
	tallies, err := s.db.Tallies()
	if err != nil {
		s.logs.Store.Errorf("Read tallies: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "stats unavailable"})
		return
	}
	resp := StatsResponse{Tallies: tallies}
	if m := s.db.Manifest(); m != nil {
		resp.Network = m.Network
	}
	if resp.Tallies == nil {
		resp.Tallies = []store.Tally{}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckProof answers 200 for every request it could read; the body carries
// either the spendable amount or the rejection.
func (s *Server) CheckProof(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)

	var req ProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := s.verifier.Validate(req.Message, req.Addresses, req.ProofPSBT)
	s.metrics.Observe(err)
	s.record(err)
	if s.logs.HTTP.Level() <= slog.LevelDebug {
		s.dumpProof(req.ProofPSBT)
	}

	if err != nil {
		s.logs.HTTP.Infof("Proof rejected: addresses=%d %v", len(req.Addresses), err)
		c.JSON(http.StatusOK, ErrorResponse{Error: err.Error()})
		return
	}
	s.logs.HTTP.Infof("Proof accepted: network=%s inputs=%d spendable=%d", res.Network, len(res.Inputs), res.Spendable)
	c.JSON(http.StatusOK, ProofResponse{Spendable: res.Spendable})
}

func (s *Server) record(err error) {
	if s.db == nil {
		return
	}
	outcome := store.OutcomeOK
	if err != nil {
		outcome = string(reserves.CodeOf(err))
		if outcome == "" {
			outcome = "UNKNOWN"
		}
	}
	if rerr := s.db.Record(outcome); rerr != nil {
		s.logs.Store.Warnf("Record outcome %s: %v", outcome, rerr)
	}
}

func (s *Server) dumpProof(b64 string) {
	p, err := reserves.DecodeProof(b64)
	if err != nil {
		return
	}
	s.logs.HTTP.Debugf("Decoded proof:\n%s", spew.Sdump(p.Summary()))
}

func requestLogger(log slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
