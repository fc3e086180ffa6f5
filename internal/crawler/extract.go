package crawler

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"mevzuat/internal/config"
)

// Extraction errors.
var (
	ErrNoText           = errors.New("no text found in document")
	ErrUnknownExtractor = errors.New("unknown text extractor")
)

// Extractor turns a document page into plain text.
type Extractor interface {
	Extract(r io.Reader, pageURL *url.URL) (string, error)
}

// NewExtractor returns the extractor registered under name.
func NewExtractor(name string) (Extractor, error) {
	switch name {
	case config.ExtractorBody, "":
		return BodyExtractor{}, nil
	case config.ExtractorReadability:
		return ReadabilityExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtractor, name)
	}
}

// BodyExtractor returns every text node under <body> verbatim, whitespace
// included. Script, style and template contents are skipped.
type BodyExtractor struct{}

// Extract implements Extractor.
func (BodyExtractor) Extract(r io.Reader, _ *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	for _, node := range root.Nodes {
		collectText(&sb, node)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	return text, nil
}

func collectText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(sb, child)
	}
}

// ReadabilityExtractor keeps only the main article content.
type ReadabilityExtractor struct{}

// Extract implements Extractor.
func (ReadabilityExtractor) Extract(r io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	if strings.TrimSpace(article.TextContent) == "" {
		return "", ErrNoText
	}

	return article.TextContent, nil
}
