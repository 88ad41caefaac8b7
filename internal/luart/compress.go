package luart

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/Shopify/go-lua"
)

// Compress returns data as a zlib stream at best compression.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create deflater: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// BridgeCompression installs Deflate and Inflate globals. Both take and
// return byte strings; on bad input they return nil and a message.
func BridgeCompression(rt *Runtime) error {
	if rt == nil || rt.l == nil {
		return errClosed
	}
	rt.l.Register("Deflate", compressionFunc(Compress))
	rt.l.Register("Inflate", compressionFunc(Decompress))
	return nil
}

func compressionFunc(fn func([]byte) ([]byte, error)) lua.Function {
	return func(l *lua.State) int {
		out, err := fn([]byte(lua.CheckString(l, 1)))
		if err != nil {
			l.PushNil()
			l.PushString(err.Error())
			return 2
		}
		l.PushString(string(out))
		return 1
	}
}
