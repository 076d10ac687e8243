package body

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/zalando/waypoint/endpoint"
)

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

func unsupportedEncoding(encoding string) error {
	return endpoint.Errorf(http.StatusUnsupportedMediaType, "unsupported content encoding: %s", encoding)
}

// wraps the body with the decoders listed in the Content-Encoding header,
// applied in reverse order
func decode(body io.ReadCloser, h http.Header) (io.ReadCloser, error) {
	var encodings []string
	for _, v := range h.Values("Content-Encoding") {
		for _, e := range strings.Split(v, ",") {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" && e != "identity" {
				encodings = append(encodings, e)
			}
		}
	}

	r := body
	for i := len(encodings) - 1; i >= 0; i-- {
		next, err := decoder(encodings[i], r)
		if err != nil {
			r.Close()
			return nil, err
		}

		r = next
	}

	return r, nil
}

func decoder(encoding string, r io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("invalid gzip body: %w", err))
		}

		return readCloser{Reader: gr, close: func() error {
			gr.Close()
			return r.Close()
		}}, nil
	case "deflate":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("invalid deflate body: %w", err))
		}

		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return r.Close()
		}}, nil
	case "br":
		return readCloser{Reader: brotli.NewReader(r), close: r.Close}, nil
	case "zstd":
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("invalid zstd body: %w", err))
		}

		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return r.Close()
		}}, nil
	default:
		return nil, unsupportedEncoding(encoding)
	}
}
