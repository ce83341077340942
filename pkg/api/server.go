// Package api provides the calculator's HTTP API: REST endpoints,
// JSON-RPC 2.0 over HTTP and websocket, and result notifications for
// subscribed websocket clients.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"avrpwm/pkg/avr"
	"avrpwm/pkg/codegen"
	"avrpwm/pkg/config"
	"avrpwm/pkg/errors"
	"avrpwm/pkg/log"
	"avrpwm/pkg/metrics"
	"avrpwm/pkg/pwm"
)

// Version reported by server.info.
const Version = "avrpwm-0.1.0"

// Server is the calculator API server.
type Server struct {
	profiles *config.Profiles
	metrics  *metrics.CalcMetrics
	logger   *log.Logger

	httpServer *http.Server
	addr       string

	// WebSocket management
	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*WSClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	// Result subscriptions: clients that want notify_result pushes
	subscribers map[int64]struct{}
	subMu       sync.RWMutex

	running   atomic.Bool
	startTime time.Time
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP address to listen on (e.g., ":8311").
	Addr string

	// Profiles provides board lookups; nil falls back to built-ins.
	Profiles *config.Profiles

	// Metrics receives solve counters; nil disables recording.
	Metrics *metrics.CalcMetrics
}

// New creates a new API server.
func New(cfg Config) *Server {
	profiles := cfg.Profiles
	if profiles == nil {
		profiles = config.DefaultProfiles()
	}

	s := &Server{
		profiles:    profiles,
		metrics:     cfg.Metrics,
		logger:      log.GetLogger("api"),
		addr:        cfg.Addr,
		wsClients:   make(map[int64]*WSClient),
		subscribers: make(map[int64]struct{}),
		startTime:   time.Now(),
	}

	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Calculator frontends run on arbitrary origins
		},
	}

	return s
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// JSON-RPC endpoint
	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)

	// WebSocket endpoint
	mux.HandleFunc("/websocket", s.handleWebSocket)

	// REST-style endpoints
	mux.HandleFunc("/server/info", s.handleServerInfo)
	mux.HandleFunc("/calculator/timers", s.handleTimers)
	mux.HandleFunc("/calculator/boards", s.handleBoards)
	mux.HandleFunc("/calculator/solve", s.handleSolve)
	mux.HandleFunc("/calculator/code", s.handleCode)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.corsMiddleware(mux),
	}

	s.running.Store(true)
	s.logger.Info("API server listening on %s", s.addr)

	return s.httpServer.ListenAndServe()
}

// Stop stops the API server and disconnects all websocket clients.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.Close()
	}
	s.wsClients = make(map[int64]*WSClient)
	s.wsClientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests over HTTP.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error")
		return
	}

	result, err := s.dispatchMethod(req.Method, req.Params, nil)
	if err != nil {
		s.writeJSONRPCError(w, req.ID, -32000, err.Error())
		return
	}

	s.writeJSONRPCResult(w, req.ID, result)
}

// dispatchMethod routes a method call to the appropriate handler.
func (s *Server) dispatchMethod(method string, params map[string]any, client *WSClient) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo()
	case "calculator.timers":
		return s.methodTimers()
	case "calculator.boards":
		return s.methodBoards()
	case "calculator.solve":
		return s.methodSolve(params)
	case "calculator.code":
		return s.methodCode(params)
	case "calculator.subscribe":
		return s.methodSubscribe(client)
	case "server.connection.identify":
		return s.methodIdentify(params)
	default:
		return nil, fmt.Errorf("method not found: %s", method)
	}
}

// Method implementations

func (s *Server) methodServerInfo() (any, error) {
	hostname, _ := os.Hostname()

	s.wsClientMu.RLock()
	clients := len(s.wsClients)
	s.wsClientMu.RUnlock()

	return map[string]any{
		"software_version": Version,
		"hostname":         hostname,
		"mcu":              "ATmega328P",
		"websocket_count":  clients,
		"uptime":           time.Since(s.startTime).Seconds(),
	}, nil
}

func (s *Server) methodTimers() (any, error) {
	timers := make([]map[string]any, 0, 3)
	for _, t := range []avr.Timer{avr.Timer0, avr.Timer1, avr.Timer2} {
		bits := 8
		if t.Is16Bit() {
			bits = 16
		}
		pin := t.Pin()
		timers = append(timers, map[string]any{
			"id":         int(t),
			"name":       t.String(),
			"bits":       bits,
			"max_top":    t.MaxTop(),
			"pin":        pin.Name,
			"arduino":    pin.Arduino,
			"prescalers": avr.SearchPrescalers[:],
		})
	}
	return map[string]any{"timers": timers}, nil
}

func (s *Server) methodBoards() (any, error) {
	boards := make([]map[string]any, 0)
	for _, b := range s.profiles.Boards() {
		boards = append(boards, map[string]any{
			"name":        b.Name,
			"clock_hz":    b.ClockHz,
			"timer":       int(b.Timer),
			"description": b.Description,
		})
	}
	return map[string]any{"boards": boards}, nil
}

func (s *Server) methodSolve(params map[string]any) (any, error) {
	req, err := s.parseSolveRequest(params)
	if err != nil {
		return nil, err
	}

	result := s.solve(req)
	return map[string]any{"result": result}, nil
}

func (s *Server) methodCode(params map[string]any) (any, error) {
	req, err := s.parseSolveRequest(params)
	if err != nil {
		return nil, err
	}

	out := pwm.Solve(req)
	if !out.Achievable() {
		return nil, errors.UnachievableError(out.Reason)
	}
	return map[string]any{
		"code":   codegen.C(out),
		"result": out.Result(),
	}, nil
}

func (s *Server) methodSubscribe(client *WSClient) (any, error) {
	if client == nil {
		return nil, fmt.Errorf("subscription requires WebSocket connection")
	}
	s.subMu.Lock()
	s.subscribers[client.id] = struct{}{}
	s.subMu.Unlock()
	return map[string]any{"subscribed": true}, nil
}

func (s *Server) methodIdentify(params map[string]any) (any, error) {
	clientName := "unknown"
	if name, ok := params["client_name"].(string); ok {
		clientName = name
	}
	s.logger.Debug("client identified as %s", clientName)
	return map[string]any{
		"connection_id": atomic.LoadInt64(&s.nextWSID),
	}, nil
}

// solve runs the solver, records metrics and notifies subscribers.
// Every call fully replaces the previous result for subscribed clients.
func (s *Server) solve(req pwm.Request) pwm.Result {
	start := time.Now()
	out := pwm.Solve(req)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordSolve(int(req.Timer), out.Achievable(), elapsed)
	}

	result := out.Result()
	if out.Achievable() {
		s.logger.WithFields(log.Fields{
			"timer":     result.Timer,
			"prescaler": result.Prescaler,
			"top":       result.Top,
		}).Debug("solved %g Hz", req.TargetHz)
	} else {
		s.logger.Debug("unachievable: %s", out.Reason)
	}

	s.broadcastResult(result)
	return result
}

// parseSolveRequest builds a solver request from JSON-RPC/REST params.
// Either clock_hz or board must be given; board also supplies the
// timer when the params leave it out.
func (s *Server) parseSolveRequest(params map[string]any) (pwm.Request, error) {
	req := pwm.Request{
		DutyPercent: s.profiles.DefaultDuty,
		Timer:       s.profiles.DefaultTimer,
	}

	if name, ok := params["board"].(string); ok {
		board, err := s.profiles.Board(name)
		if err != nil {
			return req, err
		}
		req.ClockHz = board.ClockHz
		req.Timer = board.Timer
	}

	if v, ok := numParam(params, "clock_hz"); ok {
		req.ClockHz = v
	}
	if v, ok := numParam(params, "target_hz"); ok {
		req.TargetHz = v
	} else {
		return req, errors.APIRequestError("missing 'target_hz' parameter")
	}
	if v, ok := numParam(params, "duty_cycle"); ok {
		req.DutyPercent = v
	}
	if v, ok := numParam(params, "timer"); ok {
		req.Timer = avr.Timer(int(v))
	}

	if req.ClockHz == 0 {
		return req, errors.APIRequestError("missing 'clock_hz' or 'board' parameter")
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// numParam reads a numeric parameter, accepting JSON numbers.
func numParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// REST endpoint handlers

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodServerInfo()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodTimers()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodBoards()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, err)
		return
	}

	result, err := s.methodSolve(params)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, err)
		return
	}

	result, err := s.methodCode(params)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

// corsMiddleware allows cross-origin requests from calculator frontends.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSON response helpers

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    -32000,
			"message": err.Error(),
		},
	})
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		Error:   &jsonRPCError{Code: code, Message: message},
		ID:      id,
	})
}

// broadcastResult pushes the freshly computed result to all subscribed
// websocket clients.
func (s *Server) broadcastResult(result pwm.Result) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	if len(s.subscribers) == 0 {
		return
	}

	notification := map[string]any{
		"jsonrpc": "2.0",
		"method":  "notify_result",
		"params":  []any{result},
	}

	for clientID := range s.subscribers {
		s.wsClientMu.RLock()
		client, ok := s.wsClients[clientID]
		s.wsClientMu.RUnlock()
		if !ok {
			continue
		}
		client.Send(notification)
	}
}
