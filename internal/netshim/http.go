package netshim

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mephi42/gopob/internal/platform/timeouts"
	"golang.org/x/net/http/httpproxy"
)

const (
	// DefaultChunkSize matches CURL_MAX_WRITE_SIZE.
	DefaultChunkSize = 16 * 1024
	// DefaultTimeout bounds one transfer.
	DefaultTimeout = timeouts.Transfer
)

// ErrWriteAborted reports that the write function consumed less than it was given.
var ErrWriteAborted = errors.New("failed writing received data")

// HTTPTransport performs transfers with net/http.
type HTTPTransport struct {
	// Timeout bounds each transfer; zero means DefaultTimeout.
	Timeout time.Duration
	// ChunkSize is the largest slice handed to the write function; zero means DefaultChunkSize.
	ChunkSize int
	// Base is cloned for every transfer; nil means http.DefaultTransport.
	Base *http.Transport
}

// NewHandle implements Transport.
func (t *HTTPTransport) NewHandle() Handle {
	return &httpHandle{transport: t}
}

type httpHandle struct {
	transport *HTTPTransport

	url            string
	acceptEncoding string
	encodingSet    bool
	cookie         string
	userAgent      string
	proxy          string
	write          func([]byte) int
	responseCode   int
}

func (h *httpHandle) SetOption(opt Option, value string) error {
	switch opt {
	case OptAcceptEncoding:
		h.acceptEncoding = value
		h.encodingSet = true
	case OptCookie:
		h.cookie = value
	case OptUserAgent:
		h.userAgent = value
	case OptProxy:
		h.proxy = value
	default:
		return fmt.Errorf("option %s not handled by http transport", opt)
	}
	return nil
}

func (h *httpHandle) SetURL(url string) { h.url = url }

func (h *httpHandle) SetWriteFunction(fn func([]byte) int) { h.write = fn }

func (h *httpHandle) ResponseCode() int { return h.responseCode }

func (h *httpHandle) Close() {
	h.write = nil
}

func (h *httpHandle) Perform() error {
	h.responseCode = 0
	if strings.TrimSpace(h.url) == "" {
		return errors.New("no URL set")
	}
	req, err := http.NewRequest(http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if h.cookie != "" {
		req.Header.Set("Cookie", h.cookie)
	}
	// An empty accept-encoding leaves negotiation to net/http, which asks
	// for gzip and decodes it transparently.
	if h.encodingSet && h.acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", h.acceptEncoding)
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	h.responseCode = resp.StatusCode

	body, err := decodeBody(resp)
	if err != nil {
		return err
	}
	defer body.Close()
	return h.stream(body)
}

func (h *httpHandle) stream(body io.Reader) error {
	size := h.transport.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	for {
		n, err := body.Read(buf)
		if n > 0 && h.write != nil {
			if consumed := h.write(buf[:n]); consumed != n {
				return ErrWriteAborted
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
	}
}

func (h *httpHandle) client() *http.Client {
	base := h.transport.Base
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	rt := base.Clone()

	proxyConfig := httpproxy.FromEnvironment()
	if h.proxy != "" {
		proxyConfig = &httpproxy.Config{HTTPProxy: h.proxy, HTTPSProxy: h.proxy}
	}
	proxyFunc := proxyConfig.ProxyFunc()
	rt.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}

	timeout := h.transport.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

// decodeBody undoes a content encoding we asked for explicitly. Responses
// that net/http already decoded report Uncompressed.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Uncompressed {
		return io.NopCloser(resp.Body), nil
	}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode gzip body: %w", err)
		}
		return r, nil
	case "deflate":
		r, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode deflate body: %w", err)
		}
		return r, nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
