// Package converter transforms Confluence storage-format markup into
// portable Markdown using a three-phase placeholder-protection scheme.
package converter

import (
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/Inna0915/obsidian-confluence-flow/internal/confluence"
)

// panelIcons maps panel macro names to their semantic icon prefix.
var panelIcons = map[string]string{
	"info":    "ℹ️",
	"warning": "⚠️",
	"tip":     "💡",
	"note":    "📝",
	"panel":   "📌",
}

// Converter converts Confluence pages to Markdown.
type Converter struct {
	// IssueBaseURL is the issue-tracker base used for jira macro links.
	IssueBaseURL string
	// IncludeHeader controls whether to include the metadata header.
	IncludeHeader bool

	// structural is the phase-2 conversion step; nil selects the
	// built-in converter.
	structural func(markup string) (string, error)
}

// ConvertOptions carries per-page metadata for conversion.
type ConvertOptions struct {
	PageURL  string    // Canonical browser URL of the page
	SyncedAt time.Time // Conversion timestamp written into the header
}

// NewConverter creates a new converter with default settings.
func NewConverter(issueBaseURL string) *Converter {
	return &Converter{
		IssueBaseURL:  issueBaseURL,
		IncludeHeader: true,
	}
}

// Convert converts one page's storage body to Markdown, prefixed by the
// metadata header. It never fails: when structural conversion breaks,
// the body degrades to blunt tag stripping so one bad page cannot take
// down a sync pass.
func (c *Converter) Convert(page *confluence.Page, opts *ConvertOptions) []byte {
	var builder strings.Builder

	if c.IncludeHeader {
		builder.WriteString(c.generateHeader(page, opts))
	}

	builder.WriteString(c.ConvertBody(page.StorageValue(), page.Title))
	builder.WriteString("\n")

	return []byte(builder.String())
}

// ConvertBody runs the three-phase pipeline over a raw storage body:
// placeholder pre-scan, structural conversion, placeholder restoration.
func (c *Converter) ConvertBody(storage, pageTitle string) string {
	prot := newProtector()
	protected := prot.prescan(storage, pageTitle, c.IssueBaseURL)

	convert := c.structural
	if convert == nil {
		convert = c.convertStructural
	}

	text, err := convert(protected)
	if err != nil {
		text = stripTags(protected)
	}

	return strings.TrimSpace(prot.restore(text))
}

// convertStructural runs the generic Markdown conversion plus the
// domain rules for elements the pre-scan left in place.
func (c *Converter) convertStructural(markup string) (out string, err error) {
	// The underlying converter rules can panic on malformed trees;
	// that must surface as an error, not kill the worker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("structural conversion panic: %v", r)
		}
	}()

	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	conv.AddRules(c.domainRules()...)

	return conv.ConvertString(markup)
}

// domainRules returns the structural rules for Confluence container
// elements and panel macros.
func (c *Converter) domainRules() []md.Rule {
	return []md.Rule{
		{
			// Panel macros become block quotes with a semantic icon.
			// Any other macro left by the pre-scan is unwrapped, keeping
			// its inner content.
			Filter: []string{"ac:structured-macro"},
			Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
				name := selec.AttrOr("ac:name", "")
				if icon, ok := panelIcons[name]; ok {
					return md.String("\n\n" + blockquote(icon, strings.TrimSpace(content)) + "\n\n")
				}
				return md.String(unwrapBlock(content))
			},
		},
		{
			// Container elements are unwrapped with blank lines
			// re-inserted; otherwise their presence defeats the
			// converter's paragraph-boundary detection and block-level
			// children get crushed onto one line.
			Filter: []string{"ac:rich-text-body", "ac:layout", "ac:layout-section", "ac:layout-cell"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(unwrapBlock(content))
			},
		},
		{
			// Macro parameters and placeholders carry no content of
			// their own once macros are interpreted.
			Filter: []string{"ac:parameter", "ac:placeholder"},
			Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String("")
			},
		},
	}
}

// unwrapBlock keeps container content while restoring the blank lines
// the container's removal would otherwise lose.
func unwrapBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	return "\n\n" + trimmed + "\n\n"
}

// blockquote prefixes every content line with "> ", putting the icon on
// the first line.
func blockquote(icon, content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString("> " + icon + " " + line)
		} else {
			b.WriteString("\n> " + line)
		}
	}
	return b.String()
}

// generateHeader creates the fixed-key metadata block written atop
// every converted file.
func (c *Converter) generateHeader(page *confluence.Page, opts *ConvertOptions) string {
	var builder strings.Builder
	builder.WriteString("---\n")
	builder.WriteString(fmt.Sprintf("title: %q\n", page.Title))
	builder.WriteString(fmt.Sprintf("confluence_id: %s\n", page.ID))
	builder.WriteString(fmt.Sprintf("version: %d\n", page.Version.Number))
	if opts.PageURL != "" {
		builder.WriteString(fmt.Sprintf("url: %s\n", opts.PageURL))
	}
	syncedAt := opts.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	builder.WriteString(fmt.Sprintf("synced_at: %s\n", syncedAt.UTC().Format(time.RFC3339)))
	builder.WriteString("---\n\n")
	return builder.String()
}
