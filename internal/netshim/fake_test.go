package netshim

import "errors"

type fakeTransport struct {
	body     []byte
	code     int
	chunk    int
	err      error
	panicMsg string
	handles  []*fakeHandle
}

func (t *fakeTransport) NewHandle() Handle {
	h := &fakeHandle{transport: t, options: map[Option]string{}}
	t.handles = append(t.handles, h)
	return h
}

type fakeHandle struct {
	transport *fakeTransport
	options   map[Option]string
	url       string
	write     func([]byte) int
	performs  int
	delivered int
	code      int
	closed    bool
}

func (h *fakeHandle) SetOption(opt Option, value string) error {
	h.options[opt] = value
	return nil
}

func (h *fakeHandle) SetURL(url string) { h.url = url }

func (h *fakeHandle) SetWriteFunction(fn func([]byte) int) { h.write = fn }

func (h *fakeHandle) ResponseCode() int { return h.code }

func (h *fakeHandle) Close() { h.closed = true }

func (h *fakeHandle) Perform() error {
	h.performs++
	t := h.transport
	if t.panicMsg != "" {
		panic(t.panicMsg)
	}
	if t.err != nil {
		return t.err
	}
	h.code = t.code
	chunk := t.chunk
	if chunk <= 0 {
		chunk = len(t.body)
	}
	for off := 0; off < len(t.body); off += chunk {
		end := min(off+chunk, len(t.body))
		if h.write == nil {
			continue
		}
		n := h.write(t.body[off:end])
		h.delivered += end - off
		if n != end-off {
			return errors.New("failed writing received data")
		}
	}
	return nil
}
