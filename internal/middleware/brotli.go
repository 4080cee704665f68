package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes the Brotli middleware.
type BrotliConfig struct {
	Quality   int
	MinLength int
	// SkipSuffixes lists gin route suffixes that are never compressed.
	SkipSuffixes []string
	// SkipContentTypes lists media types that are already compressed.
	SkipContentTypes []string
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:      brotli.DefaultCompression,
	MinLength:    1024,
	SkipSuffixes: []string{"/export"},
	SkipContentTypes: []string{
		"application/pdf",
		"application/zip",
		"application/octet-stream",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	},
}

type encodingMode int

const (
	modeUndecided encodingMode = iota
	modeCompress
	modePlain
)

// brotliWriter buffers the head of the body until it knows whether the
// response is worth compressing.
type brotliWriter struct {
	gin.ResponseWriter
	cfg  *BrotliConfig
	mode encodingMode
	buf  []byte
	enc  *brotli.Writer
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	switch bw.mode {
	case modeCompress:
		return bw.enc.Write(data)
	case modePlain:
		return bw.ResponseWriter.Write(data)
	}

	if skipContentType(bw.Header().Get("Content-Type"), bw.cfg.SkipContentTypes) {
		bw.mode = modePlain
		return bw.ResponseWriter.Write(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.cfg.MinLength {
		return len(data), nil
	}

	bw.mode = modeCompress
	bw.Header().Set("Content-Encoding", "br")
	bw.Header().Del("Content-Length")
	bw.enc = brotli.NewWriterLevel(bw.ResponseWriter, bw.cfg.Quality)
	if _, err := bw.enc.Write(bw.buf); err != nil {
		return 0, err
	}
	bw.buf = nil
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush commits to whatever mode is current; an undecided body goes out plain.
func (bw *brotliWriter) Flush() {
	if bw.mode == modeCompress {
		_ = bw.enc.Flush()
	} else {
		_ = bw.finishPlain()
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) finishPlain() error {
	bw.mode = modePlain
	if len(bw.buf) == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.buf)
	bw.buf = nil
	return err
}

func (bw *brotliWriter) close() error {
	if bw.mode == modeCompress {
		return bw.enc.Close()
	}
	return bw.finishPlain()
}

func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if isStreaming(c) || hasSkippedSuffix(c.FullPath(), cfg.SkipSuffixes) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{ResponseWriter: c.Writer, cfg: &cfg}
		c.Writer = bw
		defer func() {
			if err := bw.close(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// isStreaming reports protocols that break under buffered compression:
// server-sent events and the WebSocket handshake.
func isStreaming(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func hasSkippedSuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func skipContentType(contentType string, skip []string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, t := range skip {
		if strings.EqualFold(mediaType, t) {
			return true
		}
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		// "br;q=0" style weights are treated as plain acceptance.
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
