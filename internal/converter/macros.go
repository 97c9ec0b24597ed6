package converter

import (
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"
)

// Placeholder tokens use only letters and digits so that no escaping
// rule of the structural converter can alter them.
const (
	tokenPrefix = "CFLOWPH"
	tokenSuffix = "HP"

	// defaultDiagramExt is appended to diagram names without an extension.
	defaultDiagramExt = ".drawio"

	// issueFailureMarker is emitted when no issue key can be extracted,
	// so broken references stay visible instead of silently vanishing.
	issueFailureMarker = "**[jira: no issue key found]**"

	// diagramFailureMarker is the equivalent for diagram macros with no
	// resolvable name.
	diagramFailureMarker = "**[drawio: no diagram name]**"
)

var (
	tablePattern    = regexp.MustCompile(`(?s)<table[^>]*>.*?</table>`)
	pageLinkPattern = regexp.MustCompile(
		`(?s)<ac:link[^>]*>.*?<ri:page[^>]*ri:content-title="([^"]*)"[^>]*/?>.*?</ac:link>`)
	imagePattern = regexp.MustCompile(
		`(?s)<ac:image[^>]*>.*?<ri:attachment[^>]*ri:filename="([^"]*)"[^>]*/?>.*?</ac:image>`)
	externalImagePattern = regexp.MustCompile(
		`(?s)<ac:image[^>]*>.*?<ri:url[^>]*ri:value="([^"]*)"[^>]*/?>.*?</ac:image>`)
	macroPattern = regexp.MustCompile(
		`(?s)<ac:structured-macro[^>]*ac:name="([^"]*)"[^>]*>.*?</ac:structured-macro>`)
	paramPattern = regexp.MustCompile(
		`(?s)<ac:parameter[^>]*ac:name="([^"]*)"[^>]*>(.*?)</ac:parameter>`)
	cdataBodyPattern = regexp.MustCompile(
		`(?s)<ac:plain-text-body>\s*<!\[CDATA\[(.*?)\]\]>\s*</ac:plain-text-body>`)
	issueKeyPattern = regexp.MustCompile(`[A-Z0-9]+-\d+`)
	filenamePattern = regexp.MustCompile(`ri:filename="([^"]*)"`)

	// Leftover self-closing resource elements would swallow their
	// siblings once the HTML parser ignores the "/>", so they are
	// removed before structural parsing.
	danglingResourcePattern = regexp.MustCompile(`<(?:ri:[a-z-]+|ac:emoticon)[^>]*/>`)
)

// protector implements the placeholder-protection scheme: an ordered
// list of (token, fragment) pairs applied before the lossy structural
// pass and reversed after it.
type protector struct {
	replacements []replacement
}

type replacement struct {
	token  string
	output string
}

func newProtector() *protector {
	return &protector{}
}

// protect records the final output fragment and returns the opaque
// token standing in for it.
func (p *protector) protect(output string) string {
	token := fmt.Sprintf("%s%d%s", tokenPrefix, len(p.replacements), tokenSuffix)
	p.replacements = append(p.replacements, replacement{token: token, output: output})
	return token
}

// restore substitutes every recorded token back with its fragment.
func (p *protector) restore(text string) string {
	for _, r := range p.replacements {
		text = strings.ReplaceAll(text, r.token, r.output)
	}
	return text
}

// prescan replaces domain-specific elements with placeholder tokens at
// the string level, before any structural parsing. Priority order
// matters: already-replaced text is opaque to later patterns.
func (p *protector) prescan(markup, pageTitle, issueBaseURL string) string {
	markup = p.protectComplexTables(markup)
	markup = p.protectPageLinks(markup)
	markup = p.protectAttachmentRefs(markup, pageTitle)
	markup = p.protectMacros(markup, pageTitle, issueBaseURL)
	markup = danglingResourcePattern.ReplaceAllString(markup, "")
	return markup
}

// protectComplexTables preserves tables with merged cells as raw markup
// wrapped for horizontal scroll. Plain tables stay in place for the
// structural table conversion.
func (p *protector) protectComplexTables(markup string) string {
	return tablePattern.ReplaceAllStringFunc(markup, func(table string) string {
		if !strings.Contains(table, "colspan=") && !strings.Contains(table, "rowspan=") {
			return table
		}
		wrapped := "\n<div style=\"overflow-x: auto;\">\n\n" + table + "\n\n</div>\n"
		return p.protect(wrapped)
	})
}

// protectPageLinks turns internal cross-document references into
// internal double-bracket links using the target title.
func (p *protector) protectPageLinks(markup string) string {
	return pageLinkPattern.ReplaceAllStringFunc(markup, func(link string) string {
		m := pageLinkPattern.FindStringSubmatch(link)
		title := html.UnescapeString(m[1])
		return p.protect("[[" + title + "]]")
	})
}

// protectAttachmentRefs turns image and view-file references into embed
// references scoped to this page's attachment namespace.
func (p *protector) protectAttachmentRefs(markup, pageTitle string) string {
	markup = imagePattern.ReplaceAllStringFunc(markup, func(img string) string {
		m := imagePattern.FindStringSubmatch(img)
		name := html.UnescapeString(m[1])
		return p.protect("![[" + AttachmentFilename(pageTitle, name) + "]]")
	})
	return externalImagePattern.ReplaceAllStringFunc(markup, func(img string) string {
		m := externalImagePattern.FindStringSubmatch(img)
		return p.protect("![](" + m[1] + ")")
	})
}

// protectMacros interprets the structured-macro family. Unrecognized
// macro names are left for the generic unwrap rule of the structural
// pass.
func (p *protector) protectMacros(markup, pageTitle, issueBaseURL string) string {
	return macroPattern.ReplaceAllStringFunc(markup, func(macro string) string {
		m := macroPattern.FindStringSubmatch(macro)
		switch m[1] {
		case "jira":
			return p.protect(renderIssueMacro(macro, issueBaseURL))
		case "drawio", "inc-drawio":
			return p.protect(renderDiagramMacro(macro))
		case "code":
			return p.protect(renderCodeMacro(macro))
		case "view-file":
			if fm := filenamePattern.FindStringSubmatch(macro); fm != nil {
				name := html.UnescapeString(fm[1])
				return p.protect("![[" + AttachmentFilename(pageTitle, name) + "]]")
			}
			if name := macroParams(macro)["name"]; name != "" {
				return p.protect("![[" + AttachmentFilename(pageTitle, name) + "]]")
			}
			return macro
		case "markdown", "html":
			// Raw markup passthrough: the CDATA body bypasses the
			// structural converter entirely.
			if m := cdataBodyPattern.FindStringSubmatch(macro); m != nil {
				return p.protect(m[1])
			}
			return macro
		default:
			return macro
		}
	})
}

// macroParams extracts all ac:parameter values of a macro by name.
func macroParams(macro string) map[string]string {
	params := make(map[string]string)
	for _, m := range paramPattern.FindAllStringSubmatch(macro, -1) {
		params[m[1]] = html.UnescapeString(strings.TrimSpace(m[2]))
	}
	return params
}

// renderIssueMacro extracts an issue key with a three-tier fallback:
// explicit key parameter, embedded key in the JQL parameter, then any
// key-shaped token in the macro body.
func renderIssueMacro(macro, issueBaseURL string) string {
	params := macroParams(macro)

	key := params["key"]
	if key == "" {
		key = issueKeyPattern.FindString(params["jqlQuery"])
	}
	if key == "" {
		key = issueKeyPattern.FindString(macro)
	}
	if key == "" {
		return issueFailureMarker
	}

	return fmt.Sprintf("[%s](%s/browse/%s)", key, strings.TrimSuffix(issueBaseURL, "/"), key)
}

// renderDiagramMacro emits two embed references for a diagram: the
// native file and a rendered raster fallback, so either artifact can
// satisfy the link once attachments are synced.
func renderDiagramMacro(macro string) string {
	params := macroParams(macro)
	name := params["diagramName"]
	if name == "" {
		name = params["name"]
	}
	if name == "" {
		return diagramFailureMarker
	}

	if path.Ext(name) == "" {
		name += defaultDiagramExt
	}
	raster := strings.TrimSuffix(name, path.Ext(name)) + ".png"

	return fmt.Sprintf("![[%s]]\n![[%s]]", name, raster)
}

// renderCodeMacro emits a fenced code block tagged with the optional
// language parameter. Escaping the body is mandatory: unescaped angle
// brackets would turn code into live markup downstream.
func renderCodeMacro(macro string) string {
	params := macroParams(macro)
	lang := params["language"]
	if lang == "" {
		lang = params["lang"]
	}

	body := ""
	if m := cdataBodyPattern.FindStringSubmatch(macro); m != nil {
		body = m[1]
	}

	return fmt.Sprintf("\n```%s\n%s\n```\n", lang, escapeCodeText(body))
}
