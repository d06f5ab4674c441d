package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"benevault/core/state"
	"benevault/native/vaults"
	"benevault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "BENEVAULT_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the vault engine over a single-endpoint JSON-RPC interface.
// Mutating methods require a bearer token when one is configured via the
// BENEVAULT_RPC_TOKEN environment variable.
type Server struct {
	engine    *vaults.Engine
	state     *state.Manager
	logger    *slog.Logger
	metrics   *observability.VaultMetrics
	authToken string

	// mu serializes state access: every mutating operation is atomic with
	// respect to all others, and reads observe no partial state.
	mu sync.RWMutex
}

// NewServer wires the RPC surface to the engine and state manager.
func NewServer(engine *vaults.Engine, st *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		state:     st,
		logger:    logger,
		metrics:   observability.Metrics(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Start serves the RPC endpoint and Prometheus metrics until the listener
// fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

// Handler returns the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type authError struct {
	Code    int
	Message string
	Data    interface{}
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &authError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	started := time.Now()
	outcome := s.dispatch(w, r, &req)
	s.metrics.ObserveRequest(req.Method, outcome, started)
}

// dispatch routes the request and returns an outcome label for metrics.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	switch req.Method {
	case "vaults_get":
		return s.readLocked(w, req, s.handleVaultGet)
	case "vaults_verify":
		return s.readLocked(w, req, s.handleVaultVerify)
	case "vaults_owner":
		return s.readLocked(w, req, s.handleVaultOwner)
	case "token_balance":
		return s.readLocked(w, req, s.handleTokenBalance)
	case "vaults_initialize":
		return s.withAuth(w, r, req, s.handleVaultInitialize)
	case "vaults_open":
		return s.withAuth(w, r, req, s.handleVaultOpen)
	case "vaults_close":
		return s.withAuth(w, r, req, s.handleVaultClose)
	case "vaults_distribute":
		return s.withAuth(w, r, req, s.handleDistribute)
	case "vaults_claim":
		return s.withAuth(w, r, req, s.handleClaim)
	case "vaults_deposit":
		return s.withAuth(w, r, req, s.handleDeposit)
	case "vaults_nominateOwner":
		return s.withAuth(w, r, req, s.handleNominateOwner)
	case "vaults_acceptOwnership":
		return s.withAuth(w, r, req, s.handleAcceptOwnership)
	case "vaults_setRegistry":
		return s.withAuth(w, r, req, s.handleSetRegistry)
	case "registry_add":
		return s.withAuth(w, r, req, s.handleRegistryAdd)
	case "registry_remove":
		return s.withAuth(w, r, req, s.handleRegistryRemove)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return "method_not_found"
	}
}

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next func(http.ResponseWriter, *RPCRequest) string) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return next(w, req)
}

func (s *Server) readLocked(w http.ResponseWriter, req *RPCRequest, next func(http.ResponseWriter, *RPCRequest) string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return next(w, req)
}
