package uptimerobot

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

// maxExcerpt bounds the text kept from a body that is not JSON.
const maxExcerpt = 1000

// decodeResponse turns a body into an APIResponse. Anything other than a
// JSON object, including one followed by trailing data, is replaced by a
// synthetic error carrying a text excerpt.
func decodeResponse(status int, body []byte) domain.APIResponse {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil || data == nil {
		return errorResponse(status, excerpt(body))
	}
	if _, err := dec.Token(); err != io.EOF {
		return errorResponse(status, excerpt(body))
	}

	data[domain.StatusCodeKey] = status
	return domain.APIResponse(data)
}

func errorResponse(status int, message string) domain.APIResponse {
	return domain.APIResponse{
		"status":             "error",
		"message":            message,
		domain.StatusCodeKey: status,
	}
}

func excerpt(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > maxExcerpt {
		runes = runes[:maxExcerpt]
	}
	return string(runes)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
