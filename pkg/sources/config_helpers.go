package sources

import "strings"

// ConfigString returns the trimmed string value for key from src.Config or a fallback.
func ConfigString(src Source, key, fallback string) string {
	if src.Config != nil {
		if raw, ok := src.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigAuthorizationKey  = "authorization"
)

const defaultAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// Headers builds the request headers for fetching src (skips empty values).
func Headers(src Source) map[string]string {
	headers := map[string]string{"Accept": ConfigString(src, ConfigAcceptKey, defaultAccept)}

	if v := ConfigString(src, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(src, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}
	if v := ConfigString(src, ConfigAuthorizationKey, ""); v != "" {
		headers["Authorization"] = v
	}
	return headers
}
