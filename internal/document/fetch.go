package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"syscall"
	"time"

	"github.com/kalambet/prism/internal/analysis"
)

// MaxFetchSize bounds a fetched document.
const MaxFetchSize = 5 << 20 // 5MB

const fetchTimeout = 15 * time.Second

// ErrInvalidURL is returned for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// ErrBlockedAddress is returned when a URL resolves to a loopback, private,
// link-local or unspecified address.
var ErrBlockedAddress = errors.New("address not allowed")

// NewFetchClient returns a client that refuses to connect to non-public
// addresses. The check runs on the resolved address at dial time, so
// redirects and DNS names pointing inward are refused too.
func NewFetchClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			return checkPublic(address)
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: fetchTimeout, Transport: transport}
}

func checkPublic(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := ap.Addr().Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() || ip.IsInterfaceLocalMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// Fetch downloads rawURL and converts it by content type. The returned name
// is the page title for HTML, else the last path segment.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (string, analysis.Input, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", analysis.Input{}, fmt.Errorf("%w %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", analysis.Input{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", analysis.Input{}, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", analysis.Input{}, fmt.Errorf("%s returned status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return "", analysis.Input{}, fmt.Errorf("reading %s: %w", u, err)
	}
	if len(body) > MaxFetchSize {
		return "", analysis.Input{}, fmt.Errorf("%s is larger than %d bytes", u, MaxFetchSize)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "" {
		mediaType = http.DetectContentType(body)
		mediaType, _, _ = mime.ParseMediaType(mediaType)
	}

	switch mediaType {
	case MIMEPDF:
		in, err := FromFile(name+".pdf", body)
		return name, in, err
	case "text/html", "application/xhtml+xml":
		if t := htmlTitle(bytes.NewReader(body)); t != "" {
			name = t
		}
		in, err := FromFile("page.html", body)
		return name, in, err
	case "text/plain", "text/markdown", "text/csv", "application/json":
		in, err := FromFile("page.txt", body)
		return name, in, err
	default:
		return "", analysis.Input{}, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
}
