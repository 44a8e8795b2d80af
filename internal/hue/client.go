package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Options tune the HTTP behaviour of a Client.
type Options struct {
	Timeout      time.Duration // HTTP timeout per request (0 = 10s)
	RateLimitRPS float64       // Requests per second towards the bridge (0 = 10)
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RateLimitRPS <= 0 {
		o.RateLimitRPS = 10
	}
	return o
}

// Client talks to a single bridge over the v1 REST API
type Client struct {
	address    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the bridge at address.
// token may be empty when the client is only used to register.
func NewClient(address, token string, opts Options) *Client {
	opts = opts.withDefaults()

	burst := int(opts.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		address:    address,
		token:      token,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst),
	}
}

// Address returns the bridge address
func (c *Client) Address() string {
	return c.address
}

// Close closes the client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) url(path string) string {
	if c.token == "" {
		return fmt.Sprintf("http://%s/api%s", c.address, path)
	}
	return fmt.Sprintf("http://%s/api/%s%s", c.address, c.token, path)
}

func (c *Client) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// Register asks the bridge for a new username. Until the link button on
// the bridge has been pressed this fails with an error matching
// ErrLinkButtonNotPressed.
func (c *Client) Register(ctx context.Context, deviceType string) (string, error) {
	data, err := c.request(ctx, http.MethodPost, "", map[string]string{"devicetype": deviceType})
	if err != nil {
		return "", err
	}

	var results []apiResult
	if err := json.Unmarshal(data, &results); err != nil {
		return "", fmt.Errorf("failed to decode register response: %w", err)
	}
	if err := firstError(results); err != nil {
		return "", err
	}

	for _, r := range results {
		if username, ok := r.Success["username"].(string); ok && username != "" {
			log.Debug().Str("bridge", c.address).Msg("Registered new user")
			return username, nil
		}
	}
	return "", fmt.Errorf("register response contained no username")
}

// GetLights returns all lights known to the bridge ordered by id.
func (c *Client) GetLights(ctx context.Context) ([]Light, error) {
	data, err := c.request(ctx, http.MethodGet, "/lights", nil)
	if err != nil {
		return nil, err
	}

	// Failures come back as an error array instead of the id map.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var results []apiResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("failed to decode lights response: %w", err)
		}
		if err := firstError(results); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected lights response")
	}

	var raw map[string]Light
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode lights response: %w", err)
	}

	lights := make([]Light, 0, len(raw))
	for key, light := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			log.Warn().Str("id", key).Msg("Skipping light with non-numeric id")
			continue
		}
		light.ID = id
		lights = append(lights, light)
	}
	sort.Slice(lights, func(i, j int) bool { return lights[i].ID < lights[j].ID })

	log.Debug().Int("lights", len(lights)).Msg("Fetched lights")
	return lights, nil
}

// SetLightState applies a state change to a single light.
func (c *Client) SetLightState(ctx context.Context, id int, state LightState) error {
	data, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/lights/%d/state", id), state)
	if err != nil {
		return err
	}

	var results []apiResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("failed to decode state response: %w", err)
	}
	if err := firstError(results); err != nil {
		return err
	}

	log.Debug().Int("light_id", id).Stringer("state", state).Msg("Light state applied")
	return nil
}

// Registrar registers against arbitrary bridge addresses.
type Registrar struct {
	Options Options
}

// Register creates a short-lived client for address and registers deviceType.
func (r Registrar) Register(ctx context.Context, address, deviceType string) (string, error) {
	client := NewClient(address, "", r.Options)
	defer client.Close()
	return client.Register(ctx, deviceType)
}
