// publicip asks an external resolver for the caller's current public IPv4
// address. The gate controller turns the answer into a /32 ingress rule, so
// anything other than a plain dotted-quad response is a hard failure.
package publicip

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "https://api.ipify.org"

var (
	ErrLookup  = fmt.Errorf("failed to look up public IP")
	ErrNotIPv4 = fmt.Errorf("public IP resolver did not return an IPv4 address")
)

// Client discovers the caller's public address. The zero value uses the
// default endpoint, http.DefaultClient and a 10-second deadline.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Timeout  time.Duration
}

// Discover returns the caller's public IPv4 address as a dotted quad.
func (c *Client) Discover(ctx context.Context) (string, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLookup, err)
	}

	res, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLookup, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: HTTP %d", ErrLookup, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLookup, err)
	}

	raw := strings.TrimSpace(string(data))
	addr := net.ParseIP(raw)
	if addr == nil || addr.To4() == nil {
		return "", fmt.Errorf("%w: %q", ErrNotIPv4, raw)
	}
	return addr.To4().String(), nil
}
