package proxy

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config contains configuration for the Forwarder.
type Config struct {
	// Scheme is the outbound URL scheme ("http" or "https").
	Scheme string

	// Host and Port identify the single fixed upstream target.
	Host string
	Port int

	// ConnectTimeout bounds the TCP dial. Default: 5s
	ConnectTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers; the
	// body may stream past it. Default: 30s
	ResponseHeaderTimeout time.Duration

	// MaxIdleConns sizes the upstream connection pool. Default: 100
	MaxIdleConns int
}

// Forwarder relays requests to the fixed upstream target and streams
// responses back to the caller. It holds no per-request state and is safe
// for concurrent use.
type Forwarder struct {
	target *url.URL
	client *http.Client
	logger *slog.Logger
}

// hopByHopHeaders are connection-level headers that must not be forwarded
// (RFC 7230 section 6.1). Host is rewritten to the target by the transport.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// NewForwarder creates a Forwarder for the configured upstream.
func NewForwarder(cfg *Config) *Forwarder {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}
	responseHeaderTimeout := cfg.ResponseHeaderTimeout
	if responseHeaderTimeout == 0 {
		responseHeaderTimeout = 30 * time.Second
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 100
	}

	target := &url.URL{
		Scheme: cfg.Scheme,
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: responseHeaderTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		// Streaming responses must reach the caller as they arrive.
		DisableCompression: true,
	}

	return &Forwarder{
		target: target,
		client: &http.Client{
			Transport: transport,
			// Redirects are passed through to the caller untouched.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: slog.Default().With("component", "proxy.forwarder"),
	}
}

// Target returns the upstream target URL.
func (f *Forwarder) Target() *url.URL {
	return f.target
}

// Forward relays the request to the upstream, preserving method, path,
// query string, headers (minus hop-by-hop), and body, and streams the
// response back to the caller as it arrives. The inbound request context
// governs the outbound call, so a caller disconnect aborts the upstream
// request. On failure it writes 502 (unreachable or mid-exchange failure)
// or 504 (deadline) and returns the classifying error.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) error {
	outURL := *f.target
	outURL.Path = r.URL.Path
	outURL.RawQuery = r.URL.RawQuery

	// Body is handed to the transport unread; arbitrary-size payloads
	// stream through without buffering.
	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), r.Body)
	if err != nil {
		upErr := &UpstreamError{Kind: KindProtocol, Target: f.target.Host, Cause: err}
		writeUpstreamError(w, upErr)
		return upErr
	}
	out.ContentLength = r.ContentLength

	copyHeaders(out.Header, r.Header)
	appendForwardedFor(out.Header, r)

	resp, err := f.client.Do(out)
	if err != nil {
		upErr := classifyUpstreamError(f.target.Host, err)
		f.logger.Warn("upstream request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"target", f.target.Host,
			"kind", upErr.Kind,
			"error", err,
		)
		writeUpstreamError(w, upErr)
		return upErr
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if err := streamBody(w, resp.Body); err != nil {
		// Headers are already written; nothing useful can be sent to
		// the caller at this point.
		f.logger.Warn("response stream interrupted",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		return &UpstreamError{Kind: KindProtocol, Target: f.target.Host, Cause: err}
	}

	return nil
}

// copyHeaders copies headers from src to dst, skipping hop-by-hop headers
// and any headers nominated by a Connection header.
func copyHeaders(dst, src http.Header) {
	dropped := make(map[string]bool, len(hopByHopHeaders))
	for _, h := range hopByHopHeaders {
		dropped[h] = true
	}
	for _, nominated := range src.Values("Connection") {
		for _, h := range strings.Split(nominated, ",") {
			if h = strings.TrimSpace(h); h != "" {
				dropped[http.CanonicalHeaderKey(h)] = true
			}
		}
	}

	for key, values := range src {
		if dropped[key] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// appendForwardedFor records the caller's address on the outbound request.
func appendForwardedFor(dst http.Header, r *http.Request) {
	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		clientIP = prior + ", " + clientIP
	}
	dst.Set("X-Forwarded-For", clientIP)
}

// streamBody copies the upstream body to the caller, flushing after each
// chunk so streaming responses are observed progressively.
func streamBody(w http.ResponseWriter, body io.Reader) error {
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// writeUpstreamError writes the gateway error response for a forwarding
// failure.
func writeUpstreamError(w http.ResponseWriter, err *UpstreamError) {
	status := err.StatusCode()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, http.StatusText(status))
}
