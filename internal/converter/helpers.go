package converter

import (
	"regexp"
	"strings"
)

const (
	// maxTitleLength is the maximum sanitized segment length.
	maxTitleLength = 200

	defaultUntitledStr = "Untitled"
)

// reservedChars are the filesystem-reserved characters replaced during
// sanitization. The dot is deliberately not in this set: names carrying
// extensions must survive unchanged.
const reservedChars = `\/:*?"<>|`

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeTitle makes a page or attachment title safe for use as a path
// segment. Reserved characters become underscores, surrounding
// whitespace is trimmed, internal whitespace runs collapse to a single
// space and the result is capped at 200 characters.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	name = whitespaceRun.ReplaceAllString(name, " ")

	if runes := []rune(name); len(runes) > maxTitleLength {
		name = strings.TrimSpace(string(runes[:maxTitleLength]))
	}

	if name == "" {
		return defaultUntitledStr
	}
	return name
}

// AttachmentFilename builds the locally-scoped filename for an
// attachment of a page: <sanitizedPageTitle>_<sanitizedAttachmentName>.
func AttachmentFilename(pageTitle, attachmentName string) string {
	return SanitizeTitle(pageTitle) + "_" + SanitizeTitle(attachmentName)
}

// escapeCodeText HTML-escapes the characters that would otherwise turn
// code content into live markup. The ampersand must be escaped first.
func escapeCodeText(code string) string {
	code = strings.ReplaceAll(code, "&", "&amp;")
	code = strings.ReplaceAll(code, "<", "&lt;")
	code = strings.ReplaceAll(code, ">", "&gt;")
	return code
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is the degraded fallback when structural conversion fails:
// all markup tags are removed with a blunt pattern.
func stripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, "")
	return strings.TrimSpace(text)
}
