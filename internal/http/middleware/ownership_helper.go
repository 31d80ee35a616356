package middleware

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
)

// extractUserID extracts an account ID from the request based on a defined rule.
func extractUserID(c *gin.Context, source string, paramName string) string {
	switch source {
	case "path":
		return c.Param(paramName)
	case "query":
		return c.Query(paramName)
	case "header":
		return c.GetHeader(paramName)
	case "body":
		if c.Request.Body == nil {
			return ""
		}
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return ""
		}
		// put the body back for the handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var bodyJSON map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &bodyJSON); err != nil {
			return ""
		}
		if id, ok := bodyJSON[paramName].(string); ok {
			return id
		}
	}
	return ""
}
