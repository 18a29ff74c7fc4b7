// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const userAgent = "property-tracker/1.0"

// ErrBlockedAddress is returned when a public-only client is pointed at a
// loopback, private, link-local or otherwise non-routable address.
var ErrBlockedAddress = errors.New("destination address not allowed")

// sharedAddressSpace is carrier-grade NAT (RFC 6598); net.IP has no predicate for it.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

type Client struct {
	httpClient *http.Client
}

type Option func(*clientOptions)

type clientOptions struct {
	publicOnly   bool
	maxRedirects int
}

// WithPublicOnly refuses connections to non-public addresses. The check runs
// on the resolved IP of every dial, so DNS names and redirects are covered.
func WithPublicOnly() Option {
	return func(o *clientOptions) { o.publicOnly = true }
}

// WithMaxRedirects caps how many redirects a request may follow.
func WithMaxRedirects(n int) Option {
	return func(o *clientOptions) { o.maxRedirects = n }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	o := clientOptions{maxRedirects: -1}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{Timeout: timeout}

	if o.publicOnly {
		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   publicOnlyControl,
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		// A proxy would make the dialed address the proxy's, not the target's.
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
		hc.Transport = transport
	}

	if o.maxRedirects >= 0 || o.publicOnly {
		limit := o.maxRedirects
		if limit < 0 {
			limit = 10
		}
		publicOnly := o.publicOnly
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			if publicOnly {
				if addr, err := netip.ParseAddr(req.URL.Hostname()); err == nil && !IsPublicAddr(addr) {
					return fmt.Errorf("%w: redirect to %s", ErrBlockedAddress, addr)
				}
			}
			return nil
		}
	}

	return &Client{httpClient: hc}
}

// IsPublicAddr reports whether addr is a globally routable unicast address.
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return false
	case addr.Is4() && (addr.As4()[0] == 0 || sharedAddressSpace.Contains(addr)):
		return false
	}
	return true
}

func publicOnlyControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !IsPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

// GetLimited fetches url and returns at most maxBytes of the body.
func (c *Client) GetLimited(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// PostJSON sends in as a JSON body and decodes a 2xx JSON reply into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
