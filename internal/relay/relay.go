// Package relay talks to the network relay that powers the pool pump.
// The device speaks a Shelly-style HTTP API: state is read through the
// Switch.GetStatus RPC and commanded through the legacy relay endpoint.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrStatus is returned when the device answers with a non-2xx status.
var ErrStatus = errors.New("relay: unexpected HTTP status")

// DefaultTimeout bounds every request to the device.
const DefaultTimeout = 3 * time.Second

// Client reads and commands one relay channel.
type Client struct {
	base    string
	channel int
	http    *http.Client
}

// NewClient returns a client for the device at baseURL
// (for example "http://192.168.178.33"). A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, channel int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		channel: channel,
		http:    &http.Client{Timeout: timeout},
	}
}

// switchStatus is the part of the Switch.GetStatus response we use.
type switchStatus struct {
	ID     int   `json:"id"`
	Output *bool `json:"output"`
}

// PumpState returns whether the relay output is on.
func (c *Client) PumpState(ctx context.Context) (bool, error) {
	u := fmt.Sprintf("%s/rpc/Switch.GetStatus?id=%d", c.base, c.channel)
	body, err := c.get(ctx, u)
	if err != nil {
		return false, fmt.Errorf("get status: %w", err)
	}
	return parseStatus(body)
}

func parseStatus(body []byte) (bool, error) {
	var st switchStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return false, fmt.Errorf("decode status: %w", err)
	}
	if st.Output == nil {
		return false, errors.New("decode status: no output field")
	}
	return *st.Output, nil
}

// SetPump switches the relay output on or off.
func (c *Client) SetPump(ctx context.Context, on bool) error {
	turn := "off"
	if on {
		turn = "on"
	}
	q := url.Values{"turn": {turn}}
	u := fmt.Sprintf("%s/relay/%d?%s", c.base, c.channel, q.Encode())
	if _, err := c.get(ctx, u); err != nil {
		return fmt.Errorf("turn %s: %w", turn, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Status bodies are tiny; cap reads in case the device misbehaves.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	return body, nil
}
