package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Vovarama1992/support-relay/internal/logger"
)

const (
	plainTimeout    = 10 * time.Second
	runTimeout      = 20 * time.Second
	fallbackTimeout = 30 * time.Second
	streamTimeout   = 60 * time.Second
)

// HTTPAgent talks to the agent service over HTTP. The endpoint path picks the
// protocol: "/a2a/" JSON-RPC, "/runs" (optionally "/stream") run API, or a
// plain messages POST.
type HTTPAgent struct {
	baseURL   string
	endpoint  string
	assistant string
	client    *http.Client
	log       *logger.Logger
}

func NewHTTPAgent(baseURL, endpoint, assistant string, log *logger.Logger) *HTTPAgent {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPAgent{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoint:  endpoint,
		assistant: assistant,
		client:    &http.Client{},
		log:       log.With("component", "agent"),
	}
}

func (a *HTTPAgent) Call(ctx context.Context, req Request) (Result, error) {
	switch {
	case strings.Contains(a.endpoint, "/a2a/"):
		return a.callA2A(ctx, req)
	case strings.Contains(a.endpoint, "/runs") && strings.HasSuffix(a.endpoint, "/stream"):
		return a.callRunStream(ctx, req)
	case strings.Contains(a.endpoint, "/runs"):
		return a.callRun(ctx, a.runPath(req.ThreadID, a.endpoint), req, runTimeout)
	default:
		return a.callPlain(ctx, req)
	}
}

// CreateThread opens a remote thread via POST /threads.
func (a *HTTPAgent) CreateThread(ctx context.Context, meta map[string]any) (string, error) {
	body, err := a.postJSON(ctx, a.baseURL+"/threads", map[string]any{"metadata": meta}, "", plainTimeout)
	if err != nil {
		return "", err
	}
	var out struct {
		ThreadID string `json:"thread_id"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("agent threads: decode: %w", err)
	}
	if out.ThreadID == "" {
		out.ThreadID = out.ID
	}
	if out.ThreadID == "" {
		return "", fmt.Errorf("agent threads: empty thread id")
	}
	return out.ThreadID, nil
}

// runPath scopes a run endpoint to a thread when one is known.
func (a *HTTPAgent) runPath(threadID, endpoint string) string {
	if threadID != "" && strings.HasPrefix(endpoint, "/runs") {
		return "/threads/" + threadID + endpoint
	}
	return endpoint
}

func (a *HTTPAgent) callPlain(ctx context.Context, req Request) (Result, error) {
	payload := map[string]any{
		"messages": req.Messages,
		"metadata": req.Metadata,
	}
	body, err := a.postJSON(ctx, a.baseURL+a.endpoint, payload, req.IdempotencyKey, plainTimeout)
	if err != nil {
		return Result{}, err
	}
	return parsePlain(body), nil
}

func (a *HTTPAgent) runPayload(req Request) map[string]any {
	return map[string]any{
		"assistant_id": a.assistant,
		"input":        map[string]any{"messages": req.Messages},
		"metadata":     req.Metadata,
	}
}

func (a *HTTPAgent) callRun(ctx context.Context, path string, req Request, timeout time.Duration) (Result, error) {
	body, err := a.postJSON(ctx, a.baseURL+path, a.runPayload(req), req.IdempotencyKey, timeout)
	if err != nil {
		return Result{}, err
	}
	return parseRun(body), nil
}

// callRunStream reads the SSE run stream; when it yields no text the
// non-stream run endpoint is tried once.
func (a *HTTPAgent) callRunStream(ctx context.Context, req Request) (Result, error) {
	path := a.runPath(req.ThreadID, a.endpoint)
	payload := a.runPayload(req)
	payload["stream_mode"] = "messages"

	text, err := a.stream(ctx, a.baseURL+path, payload, req.IdempotencyKey)
	if err != nil {
		a.log.Warn("agent stream failed, trying non-stream run", "error", err)
	}
	if text != "" {
		return Result{Segments: []string{text}}, nil
	}

	res, err := a.callRun(ctx, strings.TrimSuffix(path, "/stream"), req, fallbackTimeout)
	if err != nil {
		return Result{}, err
	}
	if len(res.Texts()) == 0 {
		return Result{}, fmt.Errorf("agent run: empty response")
	}
	return res, nil
}

func (a *HTTPAgent) stream(ctx context.Context, url string, payload any, idemKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("agent stream: status=%d body=%s", resp.StatusCode, raw)
	}

	var acc streamText
	err = readSSE(resp.Body, acc.addEvent)
	return acc.text, err
}

func (a *HTTPAgent) callA2A(ctx context.Context, req Request) (Result, error) {
	msgID := ""
	if v, ok := req.Metadata["message_id"]; ok && v != nil {
		msgID = fmt.Sprint(v)
	}
	rpc := map[string]any{
		"jsonrpc": "2.0",
		"id":      msgID,
		"method":  "message/send",
		"params": map[string]any{
			"message": map[string]any{
				"role":  "user",
				"parts": []map[string]any{{"kind": "text", "text": req.LastUserText()}},
			},
			"messageId": msgID,
			"thread":    map[string]any{"threadId": req.ThreadID},
		},
	}
	body, err := a.postJSON(ctx, a.baseURL+a.endpoint, rpc, req.IdempotencyKey, plainTimeout)
	if err != nil {
		return Result{}, err
	}
	res, ok := parseA2A(body)
	if !ok {
		return Result{}, fmt.Errorf("agent a2a: error response: %s", truncate(body, 200))
	}
	return res, nil
}

func (a *HTTPAgent) postJSON(ctx context.Context, url string, payload any, idemKey string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent: status=%d body=%s", resp.StatusCode, truncate(raw, 200))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
