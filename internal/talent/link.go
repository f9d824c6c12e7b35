package talent

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

const maxUnescapeRounds = 3

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// ExtractResumeLink pulls a resume URL out of an export cell. The cell may hold
// an HTML anchor, a (nested) percent-encoded URL or a raw URL. Anything that
// cannot be resolved yields "".
func ExtractResumeLink(cell string) string {
	cell = cleanCell(cell)
	if cell == "" {
		return ""
	}

	if strings.Contains(cell, "<") {
		if text := anchorText(cell); looksLikeURL(text) {
			return text
		}
	}

	decoded := cell
	for range maxUnescapeRounds {
		next, err := url.PathUnescape(decoded)
		if err != nil || next == decoded {
			break
		}
		decoded = next
	}
	decoded = html.UnescapeString(decoded)

	match := urlPattern.FindString(decoded)
	return strings.TrimRight(match, ".,;)]")
}

// anchorText returns the text of the first <a> element in fragment.
func anchorText(fragment string) string {
	doc, err := xhtml.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	anchor := findElement(doc, "a")
	if anchor == nil {
		return ""
	}

	var b strings.Builder
	collectText(anchor, &b)
	return strings.TrimSpace(b.String())
}

func findElement(n *xhtml.Node, tag string) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *xhtml.Node, b *strings.Builder) {
	if n.Type == xhtml.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func looksLikeURL(s string) bool {
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
