package host

import (
	"strings"

	"golang.org/x/net/html"
)

// pageTitle extracts a title from raw HTML: <title>, then og:title, then
// the first <h1>.
func pageTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	if title := findFirst(doc, isTitle, textContent); title != "" {
		return title
	}
	if title := findFirst(doc, isOpenGraphTitle, metaContent); title != "" {
		return title
	}
	return findFirst(doc, isHeading, textContent)
}

// findFirst walks doc depth-first and returns the first non-empty value
// produced by extract for a node that satisfies match.
func findFirst(doc *html.Node, match func(*html.Node) bool, extract func(*html.Node) string) string {
	var found string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			if v := extract(n); v != "" {
				found = v
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if found != "" {
				return
			}
		}
	}
	traverse(doc)
	return found
}

func isTitle(n *html.Node) bool {
	return n.Data == "title"
}

func isHeading(n *html.Node) bool {
	return n.Data == "h1"
}

func isOpenGraphTitle(n *html.Node) bool {
	if n.Data != "meta" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == "property" && attr.Val == "og:title" {
			return true
		}
	}
	return false
}

func metaContent(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "content" {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

// textContent joins the node's descendant text with collapsed spaces.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
