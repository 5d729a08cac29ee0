package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gotsol/core/state"
	"gotsol/core/types"
	"gotsol/native/merchant"
	"gotsol/observability"
	"gotsol/observability/logging"
	"gotsol/storage/eventlog"
)

const (
	moduleMerchant = "merchant"
	moduleLedger   = "ledger"

	defaultMaxBodyBytes = 1 << 20 // 1 MiB
	requestIDHeader     = "X-Request-ID"
)

// Processor executes merchant operations. *core.StateProcessor satisfies it.
type Processor interface {
	Apply(ctx context.Context, operation string, fn func(*merchant.Engine) error) ([]types.Event, error)
	View(fn func(*merchant.Engine, *state.Manager) error) error
}

// EventLister pages through persisted audit events.
type EventLister interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Entry, error)
}

// Config tunes transport limits and request authentication.
type Config struct {
	MaxBodyBytes       int64
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReplayWindow       time.Duration
	ReadHeaderTimeout  time.Duration
	WriteTimeout       time.Duration
	Operator           OperatorAuth
}

// Option customises a Server.
type Option func(*Server)

// WithClock sets the clock used for replay windows, rate limits and tokens.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type handlerFunc func(ctx context.Context, req *RPCRequest, call *signedCall) (interface{}, error)

type method struct {
	module   string
	signed   bool
	operator bool
	handle   handlerFunc
}

// Server exposes the merchant engine over JSON-RPC 2.0.
type Server struct {
	processor Processor
	events    EventLister
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	replay    *replayCache
	sources   *limiterSet
	callers   *limiterSet
	methods   map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer wires a JSON-RPC server around processor. events may be nil, in
// which case merchant_listEvents reports the feed as unavailable.
func NewServer(processor Processor, events EventLister, cfg Config, opts ...Option) (*Server, error) {
	if processor == nil {
		return nil, errors.New("rpc: processor required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReplayWindow <= 0 {
		return nil, errors.New("rpc: replay window must be positive")
	}
	s := &Server{
		processor: processor,
		events:    events,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		replay:    newReplayCache(cfg.ReplayWindow),
		sources:   newLimiterSet(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		callers:   newLimiterSet(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.methods = s.routes()
	return s, nil
}

func (s *Server) routes() map[string]method {
	return map[string]method{
		"merchant_create":          {module: moduleMerchant, signed: true, handle: s.handleCreate},
		"merchant_close":           {module: moduleMerchant, signed: true, handle: s.handleClose},
		"merchant_withdrawToken":   {module: moduleMerchant, signed: true, handle: s.handleWithdrawToken},
		"merchant_withdrawNative":  {module: moduleMerchant, signed: true, handle: s.handleWithdrawNative},
		"merchant_payCompliance":   {module: moduleMerchant, signed: true, handle: s.handlePayCompliance},
		"merchant_refundToken":     {module: moduleMerchant, signed: true, handle: s.handleRefundToken},
		"merchant_refundNative":    {module: moduleMerchant, signed: true, handle: s.handleRefundNative},
		"merchant_closeRefund":     {module: moduleMerchant, signed: true, handle: s.handleCloseRefund},
		"merchant_setStatus":       {module: moduleMerchant, signed: true, handle: s.handleSetStatus},
		"merchant_setRefundLimit":  {module: moduleMerchant, signed: true, handle: s.handleSetRefundLimit},
		"merchant_pay":             {module: moduleMerchant, signed: true, handle: s.handlePay},
		"merchant_get":             {module: moduleMerchant, handle: s.handleGet},
		"merchant_getRefund":       {module: moduleMerchant, handle: s.handleGetRefund},
		"merchant_deriveAddresses": {module: moduleMerchant, handle: s.handleDeriveAddresses},
		"merchant_listEvents":      {module: moduleMerchant, operator: true, handle: s.handleListEvents},
		"ledger_balance":           {module: moduleLedger, handle: s.handleBalance},
	}
}

// Handler returns the instrumented HTTP handler serving JSON-RPC, health and
// metrics endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	r.Post("/rpc", s.handle)
	return otelhttp.NewHandler(r, "rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops a running server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	source := clientSource(r)
	if !s.sources.allow(source, s.clock.Now()) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", source)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	start := s.clock.Now()
	code := s.dispatch(w, r, req, m)
	observability.ModuleMetrics().Observe(m.module, req.Method, code, s.clock.Since(start))
}

// dispatch authenticates and runs one method, returning the JSON-RPC error
// code written, or zero on success.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest, m method) int {
	if m.operator {
		if authErr := s.authorizeOperator(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return authErr.Code
		}
	}
	var call *signedCall
	if m.signed {
		var (
			status  int
			authErr *RPCError
		)
		call, status, authErr = s.authenticate(req.Method, req)
		if authErr != nil {
			if authErr.Code == codeDuplicateTx {
				observability.ModuleMetrics().RecordThrottle(m.module, "replay")
			}
			s.logger.WarnContext(r.Context(), "rpc request rejected",
				slog.String("method", req.Method),
				slog.String("request_id", w.Header().Get(requestIDHeader)),
				slog.Int("code", authErr.Code),
				logging.MaskField("params", firstParam(req)))
			writeError(w, status, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return authErr.Code
		}
		if !s.callers.allow(call.Caller.Key.String(), s.clock.Now()) {
			observability.ModuleMetrics().RecordThrottle(m.module, "rate_limit")
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", call.Caller.Key.String())
			return codeRateLimited
		}
	}

	result, err := m.handle(r.Context(), req, call)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return rpcErr.Code
		}
		code := writeEngineError(w, req.ID, err)
		if code == codeServerError {
			s.logger.ErrorContext(r.Context(), "rpc handler failed",
				slog.String("method", req.Method),
				slog.String("request_id", w.Header().Get(requestIDHeader)),
				slog.Any("error", err))
		}
		return code
	}
	writeResult(w, req.ID, result)
	return 0
}

func firstParam(req *RPCRequest) string {
	if len(req.Params) == 0 {
		return ""
	}
	return string(req.Params[0])
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
