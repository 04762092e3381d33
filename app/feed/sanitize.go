package feed

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var allowedTags = map[string]bool{
	"div": true, "p": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"img": true, "br": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "td": true, "th": true,
	"ul": true, "ol": true, "li": true,
	"em": true, "i": true, "strong": true, "b": true,
	"pre": true, "code": true, "tt": true,
	"a": true, "blockquote": true,
}

// Subtrees under these are removed with their text.
var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "title": true, "iframe": true, "object": true, "embed": true,
	"form": true, "button": true, "select": true, "textarea": true,
	"svg": true, "math": true,
}

var voidTags = map[string]bool{"img": true, "br": true}

// Sanitize restricts an HTML fragment to a small set of presentational tags.
// Unknown elements are unwrapped, only a[href] and img[src,alt] keep
// attributes, and elements left without content are removed.
func Sanitize(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var b strings.Builder
	sanitizeNode(&b, doc)
	return strings.TrimSpace(b.String()), nil
}

func sanitizeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		sanitizeChildren(b, n)
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		tag := strings.ToLower(n.Data)

		if droppedTags[tag] {
			return
		}
		if !allowedTags[tag] {
			sanitizeChildren(b, n)
			return
		}

		attrs, ok := allowedAttrs(tag, n.Attr)
		if !ok {
			return
		}

		if voidTags[tag] {
			b.WriteString("<" + tag + attrs + "/>")
			return
		}

		var inner strings.Builder
		sanitizeChildren(&inner, n)
		if strings.TrimSpace(inner.String()) == "" {
			return
		}

		b.WriteString("<" + tag + attrs + ">")
		b.WriteString(inner.String())
		b.WriteString("</" + tag + ">")
	}
}

func sanitizeChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sanitizeNode(b, c)
	}
}

// allowedAttrs renders the attributes kept for tag. It reports false when the
// element is useless without them (an image with no source).
func allowedAttrs(tag string, attrs []html.Attribute) (string, bool) {
	var b strings.Builder

	switch tag {
	case "a":
		for _, a := range attrs {
			if a.Key != "href" {
				continue
			}
			href := strings.TrimSpace(a.Val)
			if strings.HasPrefix(strings.ToLower(href), "javascript:") {
				continue
			}
			writeAttr(&b, "href", href)
		}
	case "img":
		src := ""
		for _, a := range attrs {
			if a.Key == "src" {
				src = strings.TrimSpace(a.Val)
			}
		}
		if src == "" {
			return "", false
		}
		writeAttr(&b, "src", src)
		for _, a := range attrs {
			if a.Key == "alt" {
				writeAttr(&b, "alt", a.Val)
			}
		}
	}

	return b.String(), true
}

func writeAttr(b *strings.Builder, key, val string) {
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(val))
	b.WriteString(`"`)
}
