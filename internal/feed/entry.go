package feed

import (
	"encoding/xml"
	"errors"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// --- RSS 2.0 / RDF ---

type rssItem struct {
	GUID        string   `xml:"guid"`
	Title       string   `xml:"title"`
	Links       []string `xml:"link"`
	Description string   `xml:"description"`
	Encoded     string   `xml:"encoded"` // content:encoded
	PubDate     string   `xml:"pubDate"`
	Date        string   `xml:"date"` // dc:date
	Author      string   `xml:"author"`
	Creator     string   `xml:"creator"` // dc:creator
}

// --- Atom 1.0 ---

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Links     []atomLink   `xml:"link"`
	Summary   atomText     `xml:"summary"`
	Content   atomText     `xml:"content"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

var errEmptyEntry = errors.New("entry has neither title nor content")

func (r *Reader) decodeEntry(start *xml.StartElement) (domain.FeedItem, error) {
	var item domain.FeedItem
	if r.meta.Format == FormatAtom {
		var e atomEntry
		if err := r.dec.DecodeElement(&e, start); err != nil {
			return domain.FeedItem{}, err
		}
		item = e.toItem()
	} else {
		var it rssItem
		if err := r.dec.DecodeElement(&it, start); err != nil {
			return domain.FeedItem{}, err
		}
		item = it.toItem()
	}

	if item.Title == "" && item.Content == "" {
		return domain.FeedItem{}, &ItemParseError{Index: r.index, Err: errEmptyEntry}
	}
	if item.Title == "" {
		item.Title = firstNonEmpty(item.Link, item.GUID, "Untitled")
	}
	return item, nil
}

func (it rssItem) toItem() domain.FeedItem {
	var link string
	for _, l := range it.Links {
		if l = strings.TrimSpace(l); l != "" {
			link = l
			break
		}
	}

	content := strings.TrimSpace(it.Encoded)
	summary := strings.TrimSpace(it.Description)
	if content == "" {
		content, summary = summary, ""
	}

	return domain.FeedItem{
		GUID:      firstNonEmpty(it.GUID, link),
		Title:     strings.TrimSpace(it.Title),
		Content:   content,
		Summary:   summary,
		Link:      link,
		Author:    firstNonEmpty(it.Author, it.Creator),
		Published: ParseDate(firstNonEmpty(it.PubDate, it.Date)),
	}
}

func (e atomEntry) toItem() domain.FeedItem {
	link := entryLink(e.Links)

	content := e.Content.body()
	summary := e.Summary.body()
	if content == "" {
		content, summary = summary, ""
	}

	var author string
	if len(e.Authors) > 0 {
		author = strings.TrimSpace(e.Authors[0].Name)
	}

	return domain.FeedItem{
		GUID:      firstNonEmpty(e.ID, link),
		Title:     strings.TrimSpace(e.Title),
		Content:   content,
		Summary:   summary,
		Link:      link,
		Author:    author,
		Published: ParseDate(firstNonEmpty(e.Published, e.Updated)),
	}
}

// body returns markup for html/text content and the inner markup for xhtml.
func (t atomText) body() string {
	if strings.EqualFold(strings.TrimSpace(t.Type), "xhtml") {
		return strings.TrimSpace(t.Inner)
	}
	return strings.TrimSpace(t.Text)
}

func entryLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats commonly found in feeds. It returns the
// zero time when the value is empty or not understood.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
