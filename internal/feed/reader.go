// Package feed streams RSS 2.0, RSS 1.0 (RDF) and Atom 1.0 documents one
// entry at a time.
//
// The document header (everything up to the first entry) is read by Open;
// entries are decoded lazily by Next. A reader is single-pass.
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

const (
	FormatRSS  = "rss"
	FormatAtom = "atom"

	atomNS = "http://www.w3.org/2005/Atom"
)

// FeedParseError reports a document that cannot be read at header level.
type FeedParseError struct {
	Err error
}

func (e *FeedParseError) Error() string { return "feed: parse header: " + e.Err.Error() }
func (e *FeedParseError) Unwrap() error { return e.Err }

// ItemParseError reports one entry that could not be turned into a FeedItem.
// Truncated is set when the underlying XML stream is no longer readable and
// no further entries will follow.
type ItemParseError struct {
	Index     int
	Err       error
	Truncated bool
}

func (e *ItemParseError) Error() string {
	return fmt.Sprintf("feed: entry %d: %v", e.Index, e.Err)
}
func (e *ItemParseError) Unwrap() error { return e.Err }

// Reader yields feed entries from a single forward pass over a document.
type Reader struct {
	dec     *xml.Decoder
	meta    domain.FeedMetadata
	pending *xml.StartElement
	index   int
	done    bool
}

// Open reads the document header and positions the reader before the first entry.
func Open(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, &FeedParseError{Err: errors.New("nil document")}
	}

	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	rd := &Reader{dec: dec}

	root, err := rootElement(dec)
	if err != nil {
		return nil, &FeedParseError{Err: err}
	}
	switch strings.ToLower(root.Name.Local) {
	case "rss", "rdf":
		rd.meta.Format = FormatRSS
	case "feed":
		rd.meta.Format = FormatAtom
	default:
		return nil, &FeedParseError{Err: fmt.Errorf("unknown root element <%s> (expected <rss> or <feed>)", root.Name.Local)}
	}

	if err := rd.readHeader(); err != nil {
		return nil, &FeedParseError{Err: err}
	}
	return rd, nil
}

// Metadata returns feed-level information captured while opening.
func (r *Reader) Metadata() domain.FeedMetadata { return r.meta }

// Next decodes the next entry. It returns io.EOF once the document is exhausted.
func (r *Reader) Next() (domain.FeedItem, error) {
	if r.done {
		return domain.FeedItem{}, io.EOF
	}

	start := r.pending
	r.pending = nil
	if start == nil {
		se, err := r.nextEntryStart()
		if err != nil {
			r.done = true
			if errors.Is(err, io.EOF) {
				return domain.FeedItem{}, io.EOF
			}
			r.index++
			return domain.FeedItem{}, &ItemParseError{Index: r.index, Err: err, Truncated: true}
		}
		start = se
	}

	r.index++
	item, err := r.decodeEntry(start)
	if err != nil {
		var perr *ItemParseError
		if errors.As(err, &perr) {
			return domain.FeedItem{}, perr
		}
		// a decode failure leaves the token stream in an unknown position
		r.done = true
		return domain.FeedItem{}, &ItemParseError{Index: r.index, Err: err, Truncated: true}
	}
	return item, nil
}

// Items exposes the remaining entries as a sequence. Iteration stops after io.EOF.
func (r *Reader) Items() iter.Seq2[domain.FeedItem, error] {
	return func(yield func(domain.FeedItem, error) bool) {
		for {
			item, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(item, err) {
				return
			}
		}
	}
}

func rootElement(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty document")
			}
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return &se, nil
		}
	}
}

// readHeader consumes feed-level elements until the first entry start tag.
func (r *Reader) readHeader() error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				return nil
			}
			return err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch name := strings.ToLower(se.Name.Local); {
		case r.isEntry(se):
			r.pending = &se
			return nil
		case name == "channel":
			// descend: RSS metadata and items live inside channel
		case name == "title" && r.meta.Title == "":
			var title string
			if err := r.dec.DecodeElement(&title, &se); err != nil {
				return fmt.Errorf("decode feed title: %w", err)
			}
			r.meta.Title = strings.TrimSpace(title)
		case name == "link":
			if err := r.captureLink(se); err != nil {
				return err
			}
		default:
			if err := r.dec.Skip(); err != nil {
				return fmt.Errorf("skip <%s>: %w", se.Name.Local, err)
			}
		}
	}
}

func (r *Reader) captureLink(se xml.StartElement) error {
	if r.meta.Format == FormatAtom {
		if rel := attr(se, "rel"); r.meta.Link == "" && (rel == "" || rel == "alternate") {
			r.meta.Link = strings.TrimSpace(attr(se, "href"))
		}
		return r.dec.Skip()
	}
	// RSS channels often carry <atom:link rel="self">; the plain <link> is the site.
	if se.Name.Space == atomNS || strings.EqualFold(se.Name.Space, "atom") {
		return r.dec.Skip()
	}
	var link string
	if err := r.dec.DecodeElement(&link, &se); err != nil {
		return fmt.Errorf("decode feed link: %w", err)
	}
	if r.meta.Link == "" {
		r.meta.Link = strings.TrimSpace(link)
	}
	return nil
}

func (r *Reader) nextEntryStart() (*xml.StartElement, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if r.isEntry(se) {
			return &se, nil
		}
		if strings.EqualFold(se.Name.Local, "channel") {
			continue
		}
		if err := r.dec.Skip(); err != nil {
			return nil, err
		}
	}
}

func (r *Reader) isEntry(se xml.StartElement) bool {
	name := strings.ToLower(se.Name.Local)
	if r.meta.Format == FormatAtom {
		return name == "entry"
	}
	return name == "item"
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}
