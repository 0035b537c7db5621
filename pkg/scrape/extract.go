package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// minArticleLength is the readability output length below which the
// markdown fallback kicks in.
const minArticleLength = 200

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Document is extracted page content.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Extractor turns raw HTML into readable text. Readability handles
// article-shaped pages; everything else falls back to a full-page
// html-to-markdown conversion.
type Extractor struct {
	converter *md.Converter
}

// NewExtractor creates the extractor.
func NewExtractor() *Extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Extractor{converter: converter}
}

// Extract parses one fetched page.
func (e *Extractor) Extract(pageURL string, body []byte) (*Document, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc := &Document{URL: pageURL}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil {
		doc.Title = strings.TrimSpace(article.Title)
		doc.Text = cleanText(article.TextContent)
	}

	if len(doc.Text) < minArticleLength {
		markdown, convErr := e.converter.ConvertString(string(body))
		if convErr == nil && len(cleanText(markdown)) > len(doc.Text) {
			doc.Text = cleanText(markdown)
		}
	}

	if doc.Title == "" {
		doc.Title = extractHTMLTitle(body)
	}

	if doc.Text == "" {
		return nil, fmt.Errorf("no readable content in %s", pageURL)
	}

	return doc, nil
}

func cleanText(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}
