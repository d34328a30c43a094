// Package engine is the client adapter for the remote image-processing
// service. All pixel-level computation happens server-side; this adapter
// only ships serialized expression graphs and receives tile URLs. The
// session handle is explicit: it is created once and passed into every
// materialization, never held as process-global state.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloudmask/core/expr"
	"cloudmask/core/render"
	"cloudmask/internal/errors"
)

// Config holds the connection settings for one session.
type Config struct {
	// Endpoint is the service base URL.
	Endpoint string

	// Project is the service project requests are billed against.
	Project string

	// Token is the caller's access token.
	Token string

	// Timeout bounds each round trip.
	Timeout time.Duration
}

// Session is an authenticated handle on the image service. Safe for
// sequential use by one pipeline run; the design assumes exactly one run
// per invocation.
type Session struct {
	cfg     Config
	client  *http.Client
	session string
}

// NewSession authenticates against the service and returns a live session.
// Authentication happens exactly once, here.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Endpoint == "" {
		return nil, errors.Config("engine endpoint is required")
	}
	if cfg.Project == "" {
		return nil, errors.Config("engine project is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	s := &Session{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}

	var resp struct {
		Session string `json:"session"`
	}
	url := fmt.Sprintf("%s/v1/projects/%s/sessions", cfg.Endpoint, cfg.Project)
	if err := s.post(ctx, url, struct{}{}, &resp); err != nil {
		if errors.IsType(err, errors.TypeNetwork) {
			return nil, err
		}
		return nil, errors.Auth("session handshake failed", err)
	}
	s.session = resp.Session
	return s, nil
}

// Healthcheck verifies connectivity without forcing any evaluation.
func (s *Session) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint+"/health", nil)
	if err != nil {
		return errors.Internal("building healthcheck request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Network("healthcheck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.TypeNetwork, "healthcheck returned %d", resp.StatusCode)
	}
	return nil
}

// tileRequest is the body of a map-tile materialization call.
type tileRequest struct {
	Expression    json.RawMessage  `json:"expression"`
	Visualization render.VisParams `json:"visualization"`
}

// TileLayer materializes one image expression as a tile URL template. This
// is a forced evaluation point: the only network round trip in the render
// path. Implements render.TileProvider.
func (s *Session) TileLayer(ctx context.Context, img *expr.Image, vis render.VisParams) (string, error) {
	graph, err := expr.EncodeImage(img)
	if err != nil {
		return "", errors.Eval("encoding expression graph", err)
	}

	var resp struct {
		TileURL string `json:"tile_url"`
	}
	url := fmt.Sprintf("%s/v1/projects/%s/maps", s.cfg.Endpoint, s.cfg.Project)
	if err := s.post(ctx, url, tileRequest{Expression: graph, Visualization: vis}, &resp); err != nil {
		return "", err
	}
	if resp.TileURL == "" {
		return "", errors.New(errors.TypeRender, "service returned no tile URL")
	}
	return resp.TileURL, nil
}

func (s *Session) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Internal("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Internal("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	if s.session != "" {
		req.Header.Set("X-Session", s.session)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Network("calling image service", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Network("reading response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Newf(errors.TypeAuth, "service rejected credentials: %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("endpoint", url)
	case resp.StatusCode >= 400:
		return errors.Newf(errors.TypeNetwork, "service returned %d: %s", resp.StatusCode, truncate(data, 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Internal("decoding response", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
