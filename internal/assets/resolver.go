package assets

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/samvad-hq/samvad-feed-importer/pkg/blob"
)

// LocationKind tells how a resolved reference is obtained.
type LocationKind int

const (
	Remote LocationKind = iota
	Inline
)

// Resolved is a reference normalized into a fetchable location or an
// embedded payload.
type Resolved struct {
	Raw       string
	Location  string
	Kind      LocationKind
	MediaType string
	Data      []byte
}

const rootAlias = "~"

// Resolve normalizes raw against siteBase without touching the network.
//
// Rules are applied in order: a leading "~" is replaced by the site base; a
// leading "/" is prefixed with the site base ("//" inherits its scheme);
// absolute http(s) references pass through; "data:" references are decoded
// and tagged Inline. Other relative references resolve against the base.
func Resolve(raw, siteBase string) (Resolved, error) {
	res := Resolved{Raw: raw, Kind: Remote}
	ref := html.UnescapeString(strings.TrimSpace(raw))
	base := strings.TrimRight(strings.TrimSpace(siteBase), "/")

	if ref == "" {
		return res, &AssetError{Kind: KindFetch, Ref: raw, Err: fmt.Errorf("empty reference")}
	}

	switch {
	case strings.HasPrefix(ref, rootAlias):
		ref = base + "/" + strings.TrimLeft(strings.TrimPrefix(ref, rootAlias), "/")
	case strings.HasPrefix(ref, "//"):
		scheme := "https"
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		ref = scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		ref = base + ref
	case hasScheme(ref, "data"):
		mediaType, data, err := blob.DecodeDataURI(ref)
		if err != nil {
			return res, &AssetError{Kind: KindDecode, Ref: raw, Err: err}
		}
		res.Kind = Inline
		res.Location = ref
		res.MediaType = mediaType
		res.Data = data
		return res, nil
	case hasScheme(ref, "http"), hasScheme(ref, "https"):
		// already fully qualified
	default:
		ref = resolveRelative(base, ref)
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return res, &AssetError{Kind: KindFetch, Ref: raw, Err: fmt.Errorf("not a fetchable location: %q", ref)}
	}
	res.Location = ref
	return res, nil
}

func hasScheme(ref, scheme string) bool {
	return len(ref) > len(scheme) && strings.EqualFold(ref[:len(scheme)+1], scheme+":")
}

func resolveRelative(base, ref string) string {
	if base == "" {
		return ref
	}
	b, err := url.Parse(base + "/")
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
