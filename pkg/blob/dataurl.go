package blob

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DecodeDataURI decodes an RFC 2397 data URI into its media type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	if len(uri) < 5 || !strings.EqualFold(uri[:5], "data:") {
		return "", nil, fmt.Errorf("not a data uri")
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data uri has no payload separator")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" {
		mediaType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data uri payload: %w", err)
		}
		return mediaType, []byte(data), nil
	}

	// payloads copied out of markup often carry whitespace or lost padding
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if unescaped, err := url.PathUnescape(cleaned); err == nil {
		cleaned = unescaped
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	}
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("data uri payload is empty")
	}
	return mediaType, data, nil
}
