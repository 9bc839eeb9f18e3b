package assets

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// Extractor finds asset references in a markup fragment. Results keep
// source order and duplicates.
type Extractor interface {
	Images(markup string) []domain.AssetReference
	Attachments(markup string) []domain.AssetReference
}

// ExtractionError reports a single tag that could not be read.
type ExtractionError struct {
	Fragment string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract asset from %q: %v", e.Fragment, e.Err)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	imgSrcPattern  = regexp.MustCompile(`(?is)<img\b[^>]*?\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))[^>]*>`)
	linkTagPattern = regexp.MustCompile(`(?is)<(?:a|link)\b[^>]*>`)
	hrefPattern    = regexp.MustCompile(`(?is)\shref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

// RegexExtractor scans raw markup with patterns instead of a full parse, so
// it tolerates unclosed and partially quoted tags. Attribute values of
// anchor and link tags are read by parsing only the matched tag.
type RegexExtractor struct {
	// OnError, when set, receives fragments that were skipped.
	OnError func(*ExtractionError)
}

// NewRegexExtractor builds an extractor that reports skipped fragments to onError.
func NewRegexExtractor(onError func(*ExtractionError)) *RegexExtractor {
	return &RegexExtractor{OnError: onError}
}

// Images returns the src of every img tag.
func (x *RegexExtractor) Images(markup string) []domain.AssetReference {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	var refs []domain.AssetReference
	for _, m := range imgSrcPattern.FindAllStringSubmatch(markup, -1) {
		src := strings.TrimSpace(firstGroup(m[1:]))
		if src == "" {
			x.report(m[0], fmt.Errorf("empty src"))
			continue
		}
		refs = append(refs, domain.AssetReference{RawURL: src, Kind: domain.AssetImage})
	}
	return refs
}

// Attachments returns the href of every a/link tag that points somewhere fetchable.
func (x *RegexExtractor) Attachments(markup string) []domain.AssetReference {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	var refs []domain.AssetReference
	for _, tag := range linkTagPattern.FindAllString(markup, -1) {
		href, err := hrefOf(tag)
		if err != nil {
			x.report(tag, err)
			continue
		}
		refs = append(refs, domain.AssetReference{RawURL: href, Kind: domain.AssetAttachment})
	}
	return refs
}

func (x *RegexExtractor) report(fragment string, err error) {
	if x == nil || x.OnError == nil {
		return
	}
	x.OnError(&ExtractionError{Fragment: fragment, Err: err})
}

// hrefOf parses a single start tag and returns its href attribute.
func hrefOf(tag string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tag))
	if err != nil {
		return "", fmt.Errorf("parse tag: %w", err)
	}
	node := doc.Find("a, link").First()
	if node.Length() == 0 {
		return "", fmt.Errorf("no element in fragment")
	}
	href, ok := node.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", fmt.Errorf("missing href")
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return "", fmt.Errorf("not an asset location")
	}
	// goquery decodes entities; keep the text as written so the body rewrite matches it.
	if raw := rawHref(tag); raw != "" {
		return raw, nil
	}
	return href, nil
}

func rawHref(tag string) string {
	m := hrefPattern.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(firstGroup(m[1:]))
}

func firstGroup(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
