package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/platform/ratelimiter"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ledgerErrorData travels in error.data for every ledger rejection.
type ledgerErrorData struct {
	Name       string             `json:"name"`
	Category   contracts.Category `json:"category"`
	LedgerCode uint32             `json:"ledger_code"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603

	codeLedgerBase           = -32000
	codeRateLimited          = -32029
	codeIdempotencyConflict  = -32090
	codeServiceNotConfigured = -32099
)

var errInvalidParams = errors.New("invalid params")

// rateLimitedError rejects a call whose principal ran out of tokens.
type rateLimitedError struct {
	retryAfter time.Duration
}

func (e rateLimitedError) Error() string { return "rate limit exceeded" }

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	if allowed, wait := s.limiter.Check(ratelimiter.ClientKey(token, r.RemoteAddr), s.now()); !allowed {
		s.metrics.ObserveRateLimited()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if s.service == nil {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeServiceNotConfigured, Message: "service is not initialized"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	idemKey := idempotencyKey(r.Header.Get(idempotencyHeader), token)
	resp, replayed, conflict := s.idempotency.do(idemKey, requestHash(req), func() rpcResponse {
		return s.execute(r.Context(), req)
	})
	if conflict {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeIdempotencyConflict, Message: "idempotency key reused with different request"},
		})
		return
	}
	if replayed {
		resp.ID = req.ID
		s.logger.Debug("rpc replayed", "method", req.Method, "rpc_id", string(req.ID))
	}
	writeRPC(w, resp)
}

// execute dispatches one request and records its outcome.
func (s *Server) execute(ctx context.Context, req rpcRequest) rpcResponse {
	started := time.Now()
	result, rpcErr := s.dispatch(ctx, req.Method, req.Params)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		s.logger.Warn("rpc failed", "method", req.Method, "rpc_id", string(req.ID), "rpc_code", code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Debug("rpc served", "method", req.Method, "rpc_id", string(req.ID), "latency_ms", time.Since(started).Milliseconds())
	}
	metricMethod := req.Method
	if _, known := s.methods[req.Method]; !known {
		metricMethod = "unknown"
	}
	s.metrics.ObserveRPC(metricMethod, code)

	return rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}
}

func (s *Server) dispatch(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError) {
	h, ok := s.methods[method]
	if !ok {
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
	}
	return h(ctx, raw)
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
	})
}

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: "invalid params"}
}

// rpcServiceError maps ledger rejections to codeLedgerBase minus their offset
// in the error catalogue. Anything else is an internal error.
func rpcServiceError(err error) *rpcError {
	if le, ok := contracts.AsLedgerError(err); ok {
		return &rpcError{
			Code:    codeLedgerBase - int(le.Code-contracts.ErrorCodeBase),
			Message: le.Message,
			Data: ledgerErrorData{
				Name:       le.Name,
				Category:   le.Category,
				LedgerCode: le.Code,
			},
		}
	}
	msg := "internal error"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = strings.TrimSpace(err.Error())
	}
	return &rpcError{Code: codeInternal, Message: msg}
}

func rpcRateLimited(e rateLimitedError) *rpcError {
	return &rpcError{
		Code:    codeRateLimited,
		Message: e.Error(),
		Data:    map[string]int64{"retry_after_ms": e.retryAfter.Milliseconds()},
	}
}

// retryable errors are not remembered under an idempotency key.
func retryable(e *rpcError) bool {
	return e != nil && (e.Code == codeInternal || e.Code == codeRateLimited)
}

// decodeParams accepts a single object or a one-element array holding it.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var out T
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return out, errInvalidParams
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 1 {
			return out, errInvalidParams
		}
		raw = arr[0]
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, errInvalidParams
	}
	return out, nil
}
