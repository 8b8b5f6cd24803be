package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"builder/internal/auth"
	"builder/internal/chain"
	"builder/internal/gateway"
	"builder/internal/model"
	"builder/internal/search"
)

// Item saves carry their files inline, so bodies are allowed to be large.
const maxBodyBytes = 64 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "address": nil})
			return
		}
		current, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "address": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"address":       current.Address,
			"chainId":       current.ChainID,
			"expiresAt":     current.ExpiresAt,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session/message" {
		address := strings.TrimSpace(r.URL.Query().Get("address"))
		if address == "" {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "address is required", nil)
			return
		}
		timestamp := s.service.now()
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   auth.LoginMessage(address, timestamp),
			"timestamp": timestamp.UnixMilli(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Address   string `json:"address"`
			Timestamp int64  `json:"timestamp"`
			Signature string `json:"signature"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		current, err := s.service.Login(r.Context(), body.Address, body.Timestamp, body.Signature)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     current.Token,
			"address":   current.Address,
			"chainId":   current.ChainID,
			"expiresAt": current.ExpiresAt,
		})
		return
	}

	current, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		if err := s.service.Logout(r.Context(), current); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/state" {
		writeJSON(w, http.StatusOK, map[string]any{
			"version": s.service.Version(),
			"state":   s.service.Snapshot(),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/outcomes" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		outcomes, err := s.service.Outcomes(r.Context(), limit)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/connect" {
		address := s.service.workflows.Address()
		s.service.workflows.Connect(address)
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "address": address})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "collections":
			s.handleCollections(w, r, current, parts[2:])
			return
		case "items":
			s.handleItems(w, r, current, parts[2:])
			return
		case "rarities":
			s.handleRarities(w, r, parts[2:])
			return
		case "projects", "deployments":
			s.handleDeployments(w, r, current, parts[1:])
			return
		case "lands", "estates", "authorizations":
			s.handleLands(w, r, current, parts[1:])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := s.service.Ready(ctx)
	checks := make(map[string]any)
	for _, name := range s.service.CheckNames() {
		checks[name] = map[string]any{"status": "ok"}
	}
	for name, err := range failures {
		checks[name] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if len(failures) > 0 {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filterType := search.ResultType(query.Get("type"))
	if filterType != "" && filterType != search.ResultCollection && filterType != search.ResultItem {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "type must be collection or item", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:               strings.TrimSpace(query.Get("q")),
		FilterType:         filterType,
		FilterOwner:        strings.ToLower(query.Get("owner")),
		FilterCollectionID: query.Get("collection"),
		Limit:              limit,
		Offset:             offset,
	}))
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return current, true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)
		if r.Body != nil {
			r.Body = http.MaxBytesReader(writer, r.Body, maxBodyBytes)
		}

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Message, map[string]any{"field": validationErr.Field}
	}
	var conflictErr *model.StateConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict, "STATE_CONFLICT", conflictErr.Message, nil
	}
	if errors.Is(err, model.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", transportErr.Message, map[string]any{"status": transportErr.Status}
	}
	var contractErr *chain.ContractError
	if errors.As(err, &contractErr) {
		return http.StatusBadGateway, "CONTRACT_ERROR", contractErr.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
