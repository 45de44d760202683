package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"bonebot/pkg/cache"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrTimeout is returned when a fetch does not complete within its deadline.
	ErrTimeout = errors.New("fetch timed out")
	// ErrTooLarge is returned when a response body exceeds the configured limit.
	ErrTooLarge = errors.New("response body too large")
)

// sharedTimeoutFactor bounds a shared download at this many client timeouts, long enough
// for a caller that joins just before the first caller's deadline.
const sharedTimeoutFactor = 2

type Options struct {
	Timeout           time.Duration
	MaxBodySize       int64
	AllowPrivateHosts bool
	Cache             cache.Store
	CacheTTL          time.Duration
}

// Client downloads attachment and avatar bytes. Concurrent requests for the same URL share
// one download, and successful bodies are kept in the cache.
type Client struct {
	http        *resty.Client
	timeout     time.Duration
	maxBodySize int64
	cache       cache.Store
	cacheTTL    time.Duration
	group       singleflight.Group
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 8 * 1024 * 1024
	}

	transport := &http.Transport{
		DialContext: ssrfDialContext,
	}
	if opts.AllowPrivateHosts {
		transport.DialContext = (&net.Dialer{}).DialContext
	}

	client := resty.New().
		SetTransport(transport).
		SetHeader("User-Agent", "BoneBot (meme generator)").
		SetHeader("Accept", "image/*")

	return &Client{
		http:        client,
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
	}
}

// Fetch returns the body at rawURL. It fails with ErrTimeout once the client timeout or
// ctx's deadline passes.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	if c.cache != nil {
		if data, ok, err := c.cache.GetBytes(ctx, rawURL); err == nil && ok {
			return data, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ch := c.group.DoChan(rawURL, func() (interface{}, error) {
		// The download is shared, so it must not inherit the first caller's deadline or
		// cancellation. Each caller still gives up at its own deadline below.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedTimeoutFactor*c.timeout)
		defer cancel()
		return c.download(shared, rawURL)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, rawURL)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
	}
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxBodySize+1))
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, rawURL, c.maxBodySize)
	}

	if c.cache != nil {
		// A cache write failure only costs a future re-download.
		_ = c.cache.SetBytes(context.WithoutCancel(ctx), rawURL, data, c.cacheTTL)
	}
	return data, nil
}

func classify(ctx context.Context, rawURL string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", ErrTimeout, rawURL)
	}
	return fmt.Errorf("fetch %s: %w", rawURL, err)
}

func ssrfDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	for _, ip := range ips {
		if isPrivateIP(ip.IP) {
			return nil, fmt.Errorf("SSRF protection: cannot connect to private IP %s", ip.IP)
		}
	}

	d := net.Dialer{}
	return d.DialContext(ctx, network, addr)
}

var privateRanges = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, _ := net.ParseCIDR(cidr)
		nets = append(nets, network)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
