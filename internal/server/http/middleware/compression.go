package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type gzipBody struct {
	io.Reader
	gz       *gzip.Reader
	original io.ReadCloser
}

func (b *gzipBody) Close() error {
	_ = b.gz.Close()
	return b.original.Close()
}

// DecompressRequest inflates gzip encoded request bodies, capping the inflated
// size at limit bytes.
func DecompressRequest(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}

		reader, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		c.Request.Body = &gzipBody{Reader: io.LimitReader(reader, limit), gz: reader, original: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}
