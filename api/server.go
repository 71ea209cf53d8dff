package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// TreasuryService is the ledger surface exposed over HTTP
type TreasuryService interface {
	Distribute(ctx context.Context, req interfaces.DistributionRequest) (*interfaces.DistributionResult, error)
	Deposit(ctx context.Context, req interfaces.DepositRequest) (*entities.FundingDeposit, error)
	AddToReserve(ctx context.Context, credit interfaces.ReserveCredit) (*entities.ReserveTransaction, error)
	CanDistribute(ctx context.Context, tokenAmount decimal.Decimal) (*interfaces.DistributionCheck, error)
	CheckVolatility(ctx context.Context) (interfaces.VolatilityReport, entities.RiskTier)
	GetStats(ctx context.Context) (*interfaces.Stats, error)
	GetHealthCheck(ctx context.Context) (*interfaces.HealthCheck, error)
	GetReport(ctx context.Context) (*interfaces.TreasuryReport, error)
	ListTransactions(ctx context.Context, limit int) ([]*entities.ReserveTransaction, error)
}

// Server exposes the treasury ledger over HTTP
type Server struct {
	service   TreasuryService
	validator *validator.Validate
	timeout   time.Duration
	router    http.Handler
}

// NewServer creates the HTTP API. requestTimeout bounds every request.
func NewServer(service TreasuryService, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		service:   service,
		validator: validate,
		timeout:   requestTimeout,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.timeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: codeNotFound})
	})

	r.Get("/healthz", s.Healthz)

	r.Route("/v1/treasury", func(tr chi.Router) {
		tr.Get("/stats", s.GetStats)
		tr.Get("/health", s.GetHealthCheck)
		tr.Get("/report", s.GetReport)
		tr.Get("/volatility", s.GetVolatility)
		tr.Get("/can-distribute", s.CanDistribute)
		tr.Get("/transactions", s.ListTransactions)
		tr.Post("/distributions", s.Distribute)
		tr.Post("/deposits", s.Deposit)
		tr.Post("/reserve-credits", s.AddToReserve)
	})

	return r
}

// requestLogger logs each request through logrus
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
			"requestId": chimw.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	})
}
