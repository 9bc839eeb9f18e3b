// Package convert turns imported HTML bodies into Markdown.
package convert

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
)

// Options tunes a Converter.
type Options struct {
	// Sanitize strips scripts, handlers and unknown markup before conversion.
	Sanitize bool
}

// Converter is best effort: it never fails, the input is returned unchanged
// whenever conversion does not produce usable output.
type Converter struct {
	md     *converter.Converter
	policy *bluemonday.Policy
	log    logger.Logger
}

// New builds a converter with the commonmark and table rules enabled.
func New(opts Options, log logger.Logger) *Converter {
	c := &Converter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		log: logger.Ensure(log),
	}
	if opts.Sanitize {
		p := bluemonday.UGCPolicy()
		// inline images that could not be rehosted stay in the body
		p.AllowDataURIImages()
		c.policy = p
	}
	return c
}

// Convert returns the Markdown rendering of html, or html itself on failure.
func (c *Converter) Convert(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	out, err := c.convert(html)
	if err != nil {
		c.log.WarnObj("markdown conversion failed, keeping original body", "convert", map[string]interface{}{
			"error": err.Error(),
			"bytes": len(html),
		})
		return html
	}
	return out
}

func (c *Converter) convert(html string) (md string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()

	input := html
	if c.policy != nil {
		input = c.policy.Sanitize(html)
	}

	md, err = c.md.ConvertString(input)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", fmt.Errorf("conversion produced empty output")
	}
	return md, nil
}
