package merge

import (
	"regexp"
	"strings"
)

// Render substitutes ((Header)) placeholders in text with the row value
// at the header's index. Matching is exact-text on the header name; a
// placeholder naming no known header passes through verbatim. Rows
// shorter than the header list substitute "" for the missing cells.
func Render(text string, headers []string, row []string) string {
	out := text
	for i, h := range headers {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		out = strings.ReplaceAll(out, "(("+h+"))", val)
	}
	return out
}

// AppendSignature appends the account signature after two newlines,
// stripped to plain text. An empty signature leaves body untouched.
func AppendSignature(body, signature string) string {
	sig := StripHTML(signature)
	if sig == "" {
		return body
	}
	return body + "\n\n" + sig
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

var htmlEntities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// StripHTML reduces provider-stored HTML (signatures) to plain text:
// tags removed, common entities decoded, blank lines dropped.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagRe.ReplaceAllString(html, "")
	text = htmlEntities.Replace(text)
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
