package server

import "encoding/json"

// renderPayload returns a compact JSON rendering of text when it parses
// as JSON, otherwise the text unchanged. Display only: the forwarded
// bytes never pass through this.
func renderPayload(text string) string {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	out, err := json.Marshal(v)
	if err != nil {
		return text
	}
	return string(out)
}
