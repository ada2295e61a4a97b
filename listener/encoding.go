package listener

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
)

// maxBodyBytes bounds a decoded body, which guards against compression bombs.
const maxBodyBytes = 64 << 20

func newEncodedReader(enc string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "identity":
		return io.NopCloser(r), nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		return zlib.NewReader(r)
	case "compress", "br", "zstd":
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	default:
		slog.Warn("unknown encoding", "enc", enc)
		return io.NopCloser(r), nil
	}
}

func readAllEncoded(enc string, r io.Reader) ([]byte, error) {
	d, err := newEncodedReader(enc, r)
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	bs, err := io.ReadAll(io.LimitReader(d, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(bs) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}

	if err := d.Close(); err != nil {
		slog.Warn("could not close reader", "err", err)
	}

	return bs, nil
}

// isJSON accepts application/json and the +json structured syntax suffix.
// A missing content type is given the benefit of the doubt.
func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
