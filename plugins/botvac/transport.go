package botvac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const (
	requestTimeout = 15 * time.Second
	nucleoAccept   = "application/vnd.neato.nucleo.v1"
)

// Request is a single call against either backend. Body is sent as-is so that
// signed payloads reach the server byte for byte.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Envelope holds the decoded response body. A nil Data means the server
// returned nothing.
type Envelope struct {
	Data json.RawMessage
}

// Transport performs HTTP requests for the client and its robots.
type Transport interface {
	Do(ctx context.Context, req Request) (Envelope, error)
}

// HTTPTransport is the net/http backed Transport.
type HTTPTransport struct {
	httpClient *http.Client
}

func NewHTTPTransport(httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &HTTPTransport{httpClient: httpClient}
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) (Envelope, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return Envelope{}, &TransportError{Method: r.Method, URL: r.URL, Err: err}
	}
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", nucleoAccept)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Envelope{}, &TransportError{Method: r.Method, URL: r.URL, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, &TransportError{Method: r.Method, URL: r.URL, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Envelope{}, &TransportError{Method: r.Method, URL: r.URL, StatusCode: resp.StatusCode, Body: string(payload)}
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Envelope{}, nil
	}
	if !json.Valid(payload) {
		return Envelope{}, &TransportError{Method: r.Method, URL: r.URL, StatusCode: resp.StatusCode, Body: string(payload), Err: errInvalidJSON}
	}
	return Envelope{Data: json.RawMessage(payload)}, nil
}
