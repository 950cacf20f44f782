package discovery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDescriptionRunes bounds stored descriptions.
const maxDescriptionRunes = 8000

// PlainText reduces an HTML fragment to whitespace-collapsed text. Input
// without markup is returned with its whitespace collapsed.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return truncateRunes(collapseSpace(html), maxDescriptionRunes)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return truncateRunes(collapseSpace(html), maxDescriptionRunes)
	}
	doc.Find("script, style, noscript").Remove()
	// Keep block boundaries as word boundaries.
	doc.Find("br, p, li, div, h1, h2, h3, h4, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return truncateRunes(collapseSpace(doc.Text()), maxDescriptionRunes)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
