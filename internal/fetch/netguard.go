package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ValidateURL accepts only https URLs, and only public hosts unless
// allowPrivate is set
func ValidateURL(rawURL string, allowPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only https:// URLs allowed for policy downloads; got %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL has no host")
	}

	if !allowPrivate {
		host := strings.ToLower(parsed.Hostname())
		if err := validateHostNotPrivate(host); err != nil {
			return fmt.Errorf("%w (use --allow-private-hosts to override)", err)
		}
	}

	return nil
}

func validateHostNotPrivate(host string) error {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("localhost not allowed")
	}

	ip := net.ParseIP(host)
	if ip != nil && IsPrivateOrReservedIP(ip) {
		return fmt.Errorf("private/reserved IP address not allowed: %s", host)
	}

	return nil
}

// IsPrivateOrReservedIP covers RFC 1918, loopback, link-local, CGNAT,
// benchmarking and documentation ranges
func IsPrivateOrReservedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0:
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127:
			return true
		case ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19):
			return true
		case ip4[0] == 192 && ip4[1] == 0 && (ip4[2] == 0 || ip4[2] == 2):
			return true
		case ip4[0] == 198 && ip4[1] == 51 && ip4[2] == 100:
			return true
		case ip4[0] == 203 && ip4[1] == 0 && ip4[2] == 113:
			return true
		case ip4[0] >= 240:
			return true
		}
	}

	return false
}

func newSecureClient(cfg Config) *http.Client {
	var dialCtx func(ctx context.Context, network, addr string) (net.Conn, error)
	if cfg.AllowPrivateHosts {
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		dialCtx = dialer.DialContext
	} else {
		dialCtx = safeDialContext
	}

	return &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: checkRedirect(cfg),
		Transport: &http.Transport{
			// resolved IPs are checked at connect time
			DialContext: dialCtx,
			Proxy:       nil,
		},
	}
}

func checkRedirect(cfg Config) func(req *http.Request, via []*http.Request) error {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("too many redirects (%d)", len(via))
		}
		if err := ValidateURL(req.URL.String(), cfg.AllowPrivateHosts); err != nil {
			return fmt.Errorf("redirect to insecure URL blocked: %w", err)
		}
		return nil
	}
}

func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %s", host)
	}

	for _, ip := range ips {
		if IsPrivateOrReservedIP(ip) {
			return nil, fmt.Errorf("DNS resolved to private/reserved IP address (%s -> %s); connection blocked", host, ip.String())
		}
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}
