package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/gorilla/feeds"
)

const (
	DefaultIDPrefix = "tag:hn-comb,2011:hackernews-"

	feedTitle      = "Hacker News"
	feedAuthor     = "Hacker News"
	hackerNewsHome = "https://news.ycombinator.com/"
	atomNamespace  = "http://www.w3.org/2005/Atom"
)

// atomFeed is the document root. gorilla's AtomFeed carries a single link,
// the published feed needs both self and alternate.
type atomFeed struct {
	XMLName xml.Name `xml:"feed"`
	Xmlns   string   `xml:"xmlns,attr"`
	Title   string   `xml:"title"`
	ID      string   `xml:"id"`
	Links   []feeds.AtomLink
	Updated string `xml:"updated"`
	Entries []*feeds.AtomEntry
}

type Generator struct {
	idPrefix string
	now      func() time.Time
}

func NewGenerator(idPrefix string) *Generator {
	if idPrefix == "" {
		idPrefix = DefaultIDPrefix
	}
	return &Generator{idPrefix: idPrefix, now: time.Now}
}

// Run renders items, in order, as an Atom document published at selfURL.
func (g *Generator) Run(selfURL string, items []Item) ([]byte, error) {
	doc := atomFeed{
		Xmlns: atomNamespace,
		Title: feedTitle,
		ID:    selfURL,
		Links: []feeds.AtomLink{
			{Href: selfURL, Rel: "self", Type: "application/atom+xml"},
			{Href: hackerNewsHome, Rel: "alternate", Type: "text/html"},
		},
		Updated: g.updated(items).Format(time.RFC3339),
		Entries: make([]*feeds.AtomEntry, 0, len(items)),
	}

	for _, item := range items {
		doc.Entries = append(doc.Entries, g.entry(item))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode feed: %w", err)
	}
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

func (g *Generator) entry(item Item) *feeds.AtomEntry {
	return &feeds.AtomEntry{
		Title:   item.Title,
		Updated: item.UpdatedAt.UTC().Format(time.RFC3339),
		Id:      g.idPrefix + item.ID,
		Links: []feeds.AtomLink{
			{Href: item.URL, Rel: "alternate", Type: "text/html"},
		},
		Author:  &feeds.AtomAuthor{AtomPerson: feeds.AtomPerson{Name: feedAuthor}},
		Content: &feeds.AtomContent{Type: "html", Content: EntryBody(item)},
	}
}

func (g *Generator) updated(items []Item) time.Time {
	if len(items) == 0 {
		return g.now().UTC()
	}

	latest := items[0].UpdatedAt
	for _, item := range items[1:] {
		if item.UpdatedAt.After(latest) {
			latest = item.UpdatedAt
		}
	}
	return latest.UTC()
}

// EntryBody is the HTML shown for an item: its content, or a placeholder,
// followed by a link to the discussion.
func EntryBody(item Item) string {
	var buf bytes.Buffer

	buf.WriteString("<div>")
	if item.Content != "" {
		buf.WriteString(item.Content)
	} else {
		buf.WriteString("<p><em>" + FailedFetchFallback + "</em></p>")
	}
	buf.WriteString(`<hr/><p><a href="`)
	buf.WriteString(html.EscapeString(item.CommentsURL))
	buf.WriteString(`">[Hacker News discussion]</a></p></div>`)

	return buf.String()
}
