// Package relay turns an upstream response into the payload written back to
// the caller.
//
// Bodies are relayed as the exact upstream bytes. The only rewrite happens
// when the upstream declares JSON but sends something that does not parse:
// the caller then gets a JSON document carrying the raw text instead.
package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	"provider-gateway/internal/model"
)

// FallbackError is the error text of a fallback payload.
const FallbackError = "upstream returned invalid JSON"

// Payload is what the gateway writes back for one upstream response.
type Payload struct {
	Status      int
	ContentType string
	Body        []byte
	// Fallback is true when Body was synthesized because the upstream JSON
	// did not parse.
	Fallback bool
}

// fallbackBody is the document sent in place of unparseable upstream JSON.
type fallbackBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// Read consumes and closes resp.Body. An error means the body could not be
// received; the status line alone is not relayed in that case.
func Read(resp *model.ProxyResponse) (Payload, error) {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("read upstream body: %w", err)
	}

	return Decide(resp.StatusCode, resp.Header.Get("Content-Type"), raw), nil
}

// Decide builds the payload for an upstream status, content type and body.
// The status is always preserved.
func Decide(status int, contentType string, raw []byte) Payload {
	p := Payload{Status: status, ContentType: contentType, Body: raw}
	if len(raw) == 0 || !IsJSON(contentType) || json.Valid(raw) {
		return p
	}

	fb, err := json.Marshal(fallbackBody{OK: false, Error: FallbackError, Raw: string(raw)})
	if err != nil {
		// unreachable: the document only holds strings and a bool
		return p
	}
	return Payload{
		Status:      status,
		ContentType: "application/json; charset=utf-8",
		Body:        fb,
		Fallback:    true,
	}
}

// IsJSON reports whether a Content-Type header value denotes JSON,
// including structured suffixes such as application/problem+json.
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
