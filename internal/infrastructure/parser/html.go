package parser

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRun    = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRun  = regexp.MustCompile(`\n{3,}`)
	noiseTags   = "script, style, head, title, noscript"
	blockBreaks = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6"
)

// LooksLikeHTML reports whether body carries markup worth converting.
func LooksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p") ||
		strings.Contains(lower, "<br") ||
		strings.Contains(lower, "<table")
}

// Plain normalizes a text/plain part. Some senders put markup in the plain
// part; that is converted like an HTML body.
func Plain(text string) string {
	if LooksLikeHTML(text) {
		return Markdown(text)
	}
	return Collapse(text)
}

// Markdown converts an HTML body into markdown, keeping links. It falls back
// to PlainText when the converter rejects the document.
func Markdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		doc.Find(noiseTags).Remove()
		if cleaned, hErr := doc.Html(); hErr == nil {
			html = cleaned
		}
	}

	md, err := htmltomarkdown.ConvertString(html)
	if err != nil || strings.TrimSpace(md) == "" {
		return PlainText(html)
	}
	return Collapse(md)
}

// PlainText strips markup and returns readable text with one line per block.
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Collapse(html)
	}

	doc.Find(noiseTags).Remove()
	doc.Find(blockBreaks).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if href != "" && text != "" && text != href && strings.HasPrefix(href, "http") {
			s.SetText(text + " (" + href + ")")
		}
	})

	return Collapse(doc.Text())
}

// Collapse squeezes horizontal whitespace, trims lines, and caps blank runs.
func Collapse(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
