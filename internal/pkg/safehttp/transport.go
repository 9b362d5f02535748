package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Options configures an outbound transport.
type Options struct {
	// MaxConnsPerHost bounds concurrent connections to one upstream. Zero means no limit.
	MaxConnsPerHost int

	// BlockPrivateNetworks rejects connections to private or loopback IP ranges to reduce SSRF risk.
	// Pagination cursors are server-supplied URLs that receive our credentials.
	// When a proxy is in use the request's target host is checked instead of
	// the proxy, which is trusted configuration.
	BlockPrivateNetworks bool

	// Proxy selects the proxy for a request. Defaults to http.ProxyFromEnvironment.
	Proxy func(*http.Request) (*url.URL, error)
}

// NewTransport builds the pooled transport shared by all calls of one API client.
func NewTransport(opts Options) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}

	proxy := opts.Proxy
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}

	dial := dialer.DialContext
	if opts.BlockPrivateNetworks {
		g := &guard{dialer: dialer, resolver: net.DefaultResolver}
		dial = g.dial
		proxy = g.proxy(proxy)
	}

	idle := opts.MaxConnsPerHost
	if idle <= 0 {
		idle = http.DefaultMaxIdleConnsPerHost
	}

	return &http.Transport{
		Proxy:               proxy,
		DialContext:         dial,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: idle,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// guard denies private destinations. Direct connections are checked at dial
// time; proxied requests are checked by target host before the proxy is used.
type guard struct {
	dialer   *net.Dialer
	resolver *net.Resolver

	// proxies holds the host:port of every proxy handed to the transport.
	proxies sync.Map
}

func (g *guard) proxy(next func(*http.Request) (*url.URL, error)) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		u, err := next(req)
		if err != nil || u == nil {
			return u, err
		}
		if err := g.checkHost(req.Context(), req.URL.Hostname()); err != nil {
			return nil, err
		}
		g.proxies.Store(canonicalAddr(u), struct{}{})
		return u, nil
	}
}

// checkHost rejects a target that is, or resolves to, a private address.
// Names this host cannot resolve are left to the proxy.
func (g *guard) checkHost(ctx context.Context, host string) error {
	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}
	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if err := checkIP(a.IP); err != nil {
			return err
		}
	}
	return nil
}

func (g *guard) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if _, ok := g.proxies.Load(addr); ok {
		return g.dialer.DialContext(ctx, network, addr)
	}

	conn, err := g.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}
	if err := checkIP(ip); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func checkIP(ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return fmt.Errorf("access to private IP %s is denied", ip)
	}
	return nil
}

// canonicalAddr is the address the transport dials for proxy u.
func canonicalAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}
