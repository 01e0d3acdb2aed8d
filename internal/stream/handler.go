package stream

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServeTranscode writes a transcoded stream to the response as chunked
// transfer encoding; it has no Content-Length and ignores Range.
func ServeTranscode(c *gin.Context, t *Transcoder, req TranscodeRequest) error {
	result, err := t.Transcode(c.Request.Context(), req)
	if err != nil {
		return err
	}

	c.Header("Content-Type", ContentType("."+string(req.Format)))
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	for chunk := range result.Chunks {
		if _, err := c.Writer.Write(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
	}
	return result.Err()
}
