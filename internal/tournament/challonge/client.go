// Package challonge talks to the Challonge v1 REST API.
package challonge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"roster-bot/internal/models"
)

const DefaultBaseURL = "https://api.challonge.com/v1"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return "challonge" }

type participantJSON struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	ChallongeUsername string `json:"challonge_username"`
	CheckedIn         bool   `json:"checked_in"`
}

type participantEnvelope struct {
	Participant participantJSON `json:"participant"`
}

func (p participantJSON) model() models.Participant {
	return models.Participant{
		ID:        p.ID,
		Handle:    p.ChallongeUsername,
		Name:      p.Name,
		CheckedIn: p.CheckedIn,
	}
}

func (c *Client) ListParticipants(ctx context.Context, tournamentID string) ([]models.Participant, error) {
	path := fmt.Sprintf("/tournaments/%s/participants.json", url.PathEscape(tournamentID))
	var envs []participantEnvelope
	if err := c.do(ctx, http.MethodGet, path, &envs); err != nil {
		return nil, err
	}
	out := make([]models.Participant, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Participant.model())
	}
	return out, nil
}

func (c *Client) CheckIn(ctx context.Context, participantID int64, tournamentID string) (models.Participant, error) {
	path := fmt.Sprintf("/tournaments/%s/participants/%d/check_in.json", url.PathEscape(tournamentID), participantID)
	var env participantEnvelope
	if err := c.do(ctx, http.MethodPost, path, &env); err != nil {
		return models.Participant{}, err
	}
	return env.Participant.model(), nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("challonge %s %s: %w", method, path, err)
		}
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("challonge %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("challonge %s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("challonge call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("challonge %s %s: status %d: %s", method, path, resp.StatusCode, snippet(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("challonge %s %s: decode: %w", method, path, err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
