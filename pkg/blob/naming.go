package blob

import (
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	digestPrefixLen = 16
	maxNameLen      = 60
)

// Key builds the deterministic object key basePath/partition/<digest>-<name><ext>.
// Identical bytes under the same name always map to the same key.
func Key(basePath, partition, digest, name, ext string) string {
	if len(digest) > digestPrefixLen {
		digest = digest[:digestPrefixLen]
	}
	stem := sanitizeName(strings.TrimSuffix(name, path.Ext(name)))
	file := digest
	if stem != "" {
		file += "-" + stem
	}
	file += ext

	parts := make([]string, 0, 3)
	for _, p := range []string{basePath, partition} {
		if p = strings.Trim(strings.TrimSpace(p), "/"); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, file)
	return path.Join(parts...)
}

// NameFromURL returns the last path segment of a URL, without query or fragment.
func NameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func sanitizeName(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxNameLen {
		out = strings.TrimRight(out[:maxNameLen], "-")
	}
	return out
}

// extensionFor prefers the extension written in the name, falling back to the sniffed type.
func extensionFor(name string, detected *mimetype.MIME) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 1 && len(ext) <= 6 && sanitizeName(ext[1:]) == ext[1:] {
		return ext
	}
	if detected != nil {
		return detected.Extension()
	}
	return ""
}
