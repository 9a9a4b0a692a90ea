package upstream

import (
	"github.com/tidwall/gjson"
)

// DefaultCaptureLimit bounds how much of a relayed body is kept for usage
// extraction. Non-streamed completions are far below it.
const DefaultCaptureLimit = 1 << 20

// UsageCapture is the side copy of a relayed response body. It never fails a
// write, so it can sit behind an io.TeeReader without affecting the primary
// stream; once the limit is exceeded it stops buffering and reports no usage.
type UsageCapture struct {
	buf      []byte
	limit    int
	overflow bool
}

func NewUsageCapture(limit int) *UsageCapture {
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}
	return &UsageCapture{limit: limit}
}

func (c *UsageCapture) Write(p []byte) (int, error) {
	if c.overflow {
		return len(p), nil
	}
	if len(c.buf)+len(p) > c.limit {
		c.overflow = true
		c.buf = nil
		return len(p), nil
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

// TotalTokens reports usage.total_tokens of the captured body. ok is false
// when the body was truncated, is not a single JSON document, or carries no
// usable count.
func (c *UsageCapture) TotalTokens() (tokens int64, ok bool) {
	if c.overflow {
		return 0, false
	}
	return ExtractTotalTokens(c.buf)
}

func ExtractTotalTokens(body []byte) (int64, bool) {
	if !gjson.ValidBytes(body) {
		return 0, false
	}
	res := gjson.GetBytes(body, "usage.total_tokens")
	if res.Type != gjson.Number {
		return 0, false
	}
	n := res.Int()
	if n < 0 {
		return 0, false
	}
	return n, true
}

// RequestModel returns the "model" field of a chat request body, or "" when
// the body is not JSON or has no model. It is only used for attribution.
func RequestModel(body []byte) string {
	res := gjson.GetBytes(body, "model")
	if res.Type != gjson.String {
		return ""
	}
	return res.Str
}
