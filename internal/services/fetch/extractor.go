package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractVisibleText parses HTML and returns its human-visible text with
// whitespace collapsed to single spaces. Script, style and metadata nodes
// are dropped.
func ExtractVisibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, meta, link, title").Remove()

	text := doc.Text()
	return strings.Join(strings.Fields(text), " "), nil
}
