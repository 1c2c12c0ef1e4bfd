package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"comfynodes/logger"
	"comfynodes/settings"

	"github.com/gabriel-vasile/mimetype"
)

// Reason is the sub-kind of a FetchError.
type Reason string

const (
	ReasonTooLarge    Reason = "response too large"
	ReasonBadTarget   Reason = "bad scheme or host"
	ReasonContentType Reason = "unsupported content type"
	ReasonTransport   Reason = "transport failure"
)

const formURLEncoded = "application/x-www-form-urlencoded"

const maxRedirects = 5

// FetchError is the single error type returned by Fetcher.
type FetchError struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads remote images while refusing to talk to local or private
// networks. Hosts are checked lexically before any request, the resolved
// address is checked again when dialing, and every redirect is re-validated.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	isBlocked func(netip.Addr) bool
}

func NewFetcher(config settings.FetchConfig) *Fetcher {
	f := &Fetcher{
		maxBytes:  config.MaxBytes,
		userAgent: config.UserAgent,
		isBlocked: isBlockedAddr,
	}

	dialer := &net.Dialer{
		Timeout: config.Timeout(),
		Control: f.control,
	}
	transport := &http.Transport{
		// Proxies would dial on our behalf and skip the address check.
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   config.Timeout(),
		ResponseHeaderTimeout: config.Timeout(),
		IdleConnTimeout:       30 * time.Second,
	}
	f.client = &http.Client{
		Timeout:       config.Timeout(),
		Transport:     transport,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// FetchImage returns the body of rawURL. image/* responses are read through a
// hard byte ceiling and abort as soon as it is crossed, whether or not a
// Content-Length was sent. application/x-www-form-urlencoded is accepted as a
// lenient fallback and is only checked against its declared length.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{Reason: ReasonBadTarget, URL: rawURL, Err: err}
	}
	if err := f.checkTarget(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Reason: ReasonBadTarget, URL: rawURL, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &FetchError{Reason: ReasonTransport, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Reason: ReasonTransport, URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		if resp.ContentLength > f.maxBytes {
			return nil, f.tooLarge(rawURL, resp.ContentLength)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return nil, &FetchError{Reason: ReasonTransport, URL: rawURL, Err: err}
		}
		if int64(len(data)) > f.maxBytes {
			return nil, f.tooLarge(rawURL, -1)
		}
		return data, nil

	case mediaType == formURLEncoded:
		if resp.ContentLength > f.maxBytes {
			return nil, f.tooLarge(rawURL, resp.ContentLength)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{Reason: ReasonTransport, URL: rawURL, Err: err}
		}
		sniffed := mimetype.Detect(data)
		if !strings.HasPrefix(sniffed.String(), "image/") {
			return nil, &FetchError{Reason: ReasonContentType, URL: rawURL, Err: fmt.Errorf("form-encoded body sniffs as %q", sniffed.String())}
		}
		logger.Warn("Accepted image from form-encoded response", "url", rawURL, "sniffed", sniffed.String(), "bytes", len(data))
		return data, nil
	}

	return nil, &FetchError{Reason: ReasonContentType, URL: rawURL, Err: fmt.Errorf("got %q", resp.Header.Get("Content-Type"))}
}

func (f *Fetcher) tooLarge(rawURL string, declared int64) error {
	if declared >= 0 {
		return &FetchError{Reason: ReasonTooLarge, URL: rawURL, Err: fmt.Errorf("content length %d exceeds %d bytes", declared, f.maxBytes)}
	}
	return &FetchError{Reason: ReasonTooLarge, URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
}

// checkTarget is the lexical check on scheme and host.
func (f *Fetcher) checkTarget(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return &FetchError{Reason: ReasonBadTarget, URL: u.String(), Err: fmt.Errorf("scheme %q not allowed", u.Scheme)}
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return &FetchError{Reason: ReasonBadTarget, URL: u.String(), Err: errors.New("missing host")}
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return &FetchError{Reason: ReasonBadTarget, URL: u.String(), Err: fmt.Errorf("host %s is local", host)}
	}
	if addr, err := netip.ParseAddr(host); err == nil && f.isBlocked(addr.Unmap()) {
		return &FetchError{Reason: ReasonBadTarget, URL: u.String(), Err: fmt.Errorf("address %s is not public", addr)}
	}
	return nil
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return &FetchError{Reason: ReasonTransport, URL: req.URL.String(), Err: fmt.Errorf("stopped after %d redirects", maxRedirects)}
	}
	return f.checkTarget(req.URL)
}

// control runs after DNS resolution, right before connect, so it sees the
// address actually dialed.
func (f *Fetcher) control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return &FetchError{Reason: ReasonBadTarget, URL: address, Err: err}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return &FetchError{Reason: ReasonBadTarget, URL: address, Err: err}
	}
	if f.isBlocked(addr.Unmap()) {
		return &FetchError{Reason: ReasonBadTarget, URL: address, Err: fmt.Errorf("resolved address %s is not public", addr)}
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	return !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast()
}
