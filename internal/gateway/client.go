// Package gateway holds the typed HTTP clients for the builder REST API, the
// hub content network and the land API. Each operation performs exactly one
// request and returns a parsed result or a *TransportError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"builder/internal/auth"
)

// TransportError is a failed round trip. Message carries the body's error
// field when the server sent one.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// IsStatus reports whether err is a TransportError with the given status.
func IsStatus(err error, status int) bool {
	var transport *TransportError
	return errors.As(err, &transport) && transport.Status == status
}

// ProgressFunc receives upload progress in bytes.
type ProgressFunc func(loaded, total int64)

// envelope is the {ok, data, error} wrapper every JSON endpoint responds with.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type restClient struct {
	baseURL    string
	httpClient *http.Client
	signer     auth.Signer
	logger     *zap.Logger
}

func newRESTClient(baseURL string, httpClient *http.Client, signer auth.Signer, logger *zap.Logger) restClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if signer == nil {
		signer = auth.Anonymous{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		signer:     signer,
		logger:     logger,
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	size        int64
	progress    ProgressFunc
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.body = bytes.NewReader(encoded)
	req.contentType = "application/json"
	req.size = int64(len(encoded))
	return req, nil
}

// formPart is one file of a multipart upload.
type formPart struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(method, path string, parts []formPart, progress ProgressFunc) (request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range parts {
		filename := part.filename
		if filename == "" {
			filename = part.field
		}
		w, err := writer.CreateFormFile(part.field, filename)
		if err != nil {
			return request{}, fmt.Errorf("create form part %s: %w", part.field, err)
		}
		if _, err := w.Write(part.content); err != nil {
			return request{}, fmt.Errorf("write form part %s: %w", part.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return request{}, fmt.Errorf("close multipart body: %w", err)
	}
	return request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(buf.Bytes()),
		contentType: writer.FormDataContentType(),
		size:        int64(buf.Len()),
		progress:    progress,
	}, nil
}

func (c restClient) do(ctx context.Context, req request, out any) error {
	raw, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("decode %s %s: %v", req.method, req.path, err)}
	}
	if !env.OK {
		return &TransportError{Status: http.StatusOK, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("decode %s %s: %v", req.method, req.path, err)}
	}
	return nil
}

// send performs the round trip and returns the body of a 2xx response.
func (c restClient) send(ctx context.Context, req request) ([]byte, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	body := req.body
	if body != nil && req.progress != nil {
		body = &progressReader{reader: body, total: req.size, progress: req.progress}
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	if body != nil {
		httpReq.ContentLength = req.size
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	headers, err := c.signer.Sign(req.method, httpReq.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("sign %s %s: %w", req.method, req.path, err)
	}
	for key, values := range headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("read body: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &TransportError{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	return raw, nil
}

func errorMessage(raw []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || strings.HasPrefix(text, "{") {
		return fallback
	}
	return text
}

type progressReader struct {
	reader   io.Reader
	total    int64
	loaded   int64
	progress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		p.loaded += int64(n)
		p.progress(p.loaded, p.total)
	}
	return n, err
}

// rows is the paginated list shape returned by list endpoints.
type rows[T any] struct {
	Rows  []T `json:"rows"`
	Count int `json:"count"`
	Total int `json:"total"`
}
