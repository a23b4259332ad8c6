package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payload is the JSON body of POST /api/contact. FormTime is the fill time
// in milliseconds.
type Payload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	FormTime int64  `json:"formTime"`
}

// Response is the part of the server reply the form cares about. Any HTTP
// status is a Response; only transport failures are errors.
type Response struct {
	StatusCode int
	Message    string
	ID         int64
}

type Poster interface {
	Post(ctx context.Context, p Payload) (Response, error)
}

type HTTPPoster struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPoster posts to endpoint, for example
// "https://jo.dev/api/contact". A nil client gets a 15s timeout.
func NewHTTPPoster(endpoint string, c *http.Client) *HTTPPoster {
	if c == nil {
		c = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPPoster{endpoint: endpoint, client: c}
}

func (p *HTTPPoster) Post(ctx context.Context, payload Payload) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post %s: %w", p.endpoint, err)
	}
	defer res.Body.Close()

	out := Response{StatusCode: res.StatusCode}
	var reply struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	// Proxies in front of the API may answer with HTML; keep the status.
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&reply); err == nil {
		out.Message = reply.Message
		out.ID = reply.ID
	}
	return out, nil
}
