// Package netshim adapts a native HTTP transport to the value-returning
// calling convention scripts expect from lcurl's "safe" module.
//
// Failures never escape as panics: Perform converts transport errors and
// transport panics into coded errors, and the Lua binding turns those into a
// (nil, err) return pair.
package netshim

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mephi42/gopob/internal/netshim"

// Handle is one native transfer. The write function follows the native
// length convention: returning fewer bytes than offered aborts the transfer.
type Handle interface {
	SetOption(opt Option, value string) error
	SetURL(url string)
	SetWriteFunction(fn func(chunk []byte) int)
	Perform() error
	ResponseCode() int
	Close()
}

// Transport creates native handles.
type Transport interface {
	NewHandle() Handle
}

// Easy wraps a Handle with option whitelisting and error conversion.
type Easy struct {
	ctx       context.Context
	handle    Handle
	url       string
	performed bool
	closed    bool
	info      map[InfoKey]int
	tracer    trace.Tracer
}

// NewEasy creates an easy handle on transport.
func NewEasy(transport Transport) *Easy {
	e := &Easy{
		ctx:    context.Background(),
		info:   map[InfoKey]int{},
		tracer: otel.Tracer(tracerName),
	}
	if transport != nil {
		e.handle = transport.NewHandle()
	}
	return e
}

// WithContext sets the parent context for the transfer span.
func (e *Easy) WithContext(ctx context.Context) *Easy {
	if ctx != nil {
		e.ctx = ctx
	}
	return e
}

// SetOption forwards a whitelisted option to the native handle.
func (e *Easy) SetOption(opt Option, value string) error {
	if !opt.Supported() {
		return apperrors.WithMetadata(apperrors.CodeUnsupportedOption,
			fmt.Sprintf("unsupported option %s", opt),
			map[string]string{"option": strconv.Itoa(int(opt))})
	}
	if e.handle == nil || e.closed {
		return e.unavailable()
	}
	if err := e.handle.SetOption(opt, value); err != nil {
		return apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("set option %s: %v", opt, err), err)
	}
	return nil
}

// SetURL sets the transfer target.
func (e *Easy) SetURL(url string) {
	e.url = url
	if e.handle != nil && !e.closed {
		e.handle.SetURL(url)
	}
}

// SetWriteFunction installs fn as the body consumer. Returning false aborts
// the transfer.
func (e *Easy) SetWriteFunction(fn func(chunk []byte) bool) {
	if e.handle == nil || e.closed {
		return
	}
	if fn == nil {
		e.handle.SetWriteFunction(nil)
		return
	}
	e.handle.SetWriteFunction(func(chunk []byte) int {
		if fn(chunk) {
			return len(chunk)
		}
		return 0
	})
}

// Perform runs the transfer. It never panics.
func (e *Easy) Perform() (err error) {
	_, span := e.tracer.Start(e.ctx, "netshim.perform", trace.WithAttributes(attribute.String("http.url", e.url)))
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.WithMetadata(apperrors.CodeTransport, fmt.Sprintf("transport panic: %v", r),
				map[string]string{"url": e.url})
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if e.handle == nil || e.closed {
		return e.unavailable()
	}
	performErr := e.handle.Perform()
	e.performed = true
	e.info[InfoResponseCode] = e.handle.ResponseCode()
	span.SetAttributes(attribute.Int("http.status_code", e.info[InfoResponseCode]))
	if performErr != nil {
		msg := performErr.Error()
		if msg == "" {
			msg = "transfer failed"
		}
		return apperrors.WrapWithMetadata(apperrors.CodeTransport, msg, map[string]string{"url": e.url}, performErr)
	}
	return nil
}

// Info returns the value recorded for key by the last Perform.
func (e *Easy) Info(key InfoKey) (int, error) {
	if !key.Supported() {
		return 0, apperrors.WithMetadata(apperrors.CodeUnsupportedOption,
			fmt.Sprintf("unsupported info %s", key),
			map[string]string{"info": strconv.Itoa(int(key))})
	}
	if !e.performed {
		return 0, apperrors.New(apperrors.CodeUnsetInfo, fmt.Sprintf("%s queried before perform", key))
	}
	return e.info[key], nil
}

// Close releases the native handle. Further transfers fail.
func (e *Easy) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.handle != nil {
		e.handle.Close()
	}
}

func (e *Easy) unavailable() error {
	if e.closed {
		return apperrors.New(apperrors.CodeTransport, "easy handle is closed")
	}
	return apperrors.New(apperrors.CodeTransport, "no transport configured")
}
