// Package richtext handles the HTML body produced by the admin rich-text
// field: sanitising it before it is stored, and deriving plain text,
// excerpts and Markdown from it.
package richtext

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const wordsPerMinute = 200

// allowed maps each permitted element to the attributes it may keep.
var allowed = map[atom.Atom][]string{
	atom.P: nil, atom.Br: nil, atom.Hr: nil,
	atom.H2: nil, atom.H3: nil, atom.H4: nil,
	atom.Strong: nil, atom.B: nil, atom.Em: nil, atom.I: nil, atom.U: nil, atom.S: nil,
	atom.Blockquote: nil, atom.Cite: nil, atom.Code: nil, atom.Pre: nil,
	atom.Ul: nil, atom.Ol: nil, atom.Li: nil,
	atom.Figure: nil, atom.Figcaption: nil,
	atom.A:   {"href", "title"},
	atom.Img: {"src", "alt", "title", "width", "height"},
}

// dropped elements are removed together with everything inside them.
var dropped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Form: true, atom.Input: true, atom.Button: true,
	atom.Textarea: true, atom.Select: true, atom.Noscript: true, atom.Template: true,
}

// inline elements do not break words when text is extracted.
var inline = map[atom.Atom]bool{
	atom.A: true, atom.Strong: true, atom.B: true, atom.Em: true, atom.I: true,
	atom.U: true, atom.S: true, atom.Code: true, atom.Cite: true, atom.Span: true,
}

// Sanitize reduces an HTML fragment to the allowed subset. Unknown elements
// are unwrapped so their text survives; dangerous ones are removed outright.
func Sanitize(fragment string) (string, error) {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		for _, clean := range clean(n) {
			if err := html.Render(&buf, clean); err != nil {
				return "", fmt.Errorf("render html: %w", err)
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

// Trusted sanitises fragment and marks it safe for html/template. Content
// that fails to parse renders as escaped text.
func Trusted(fragment string) template.HTML {
	safe, err := Sanitize(fragment)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(fragment))
	}
	return template.HTML(safe)
}

// PlainText returns the text content with whitespace collapsed.
func PlainText(fragment string) string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, n := range nodes {
		collectText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Excerpt returns at most limit runes of plain text, cut on a word boundary.
func Excerpt(fragment string, limit int) string {
	text := PlainText(fragment)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// ReadingMinutes estimates reading time. Any non-empty body takes at least a minute.
func ReadingMinutes(fragment string) int {
	words := len(strings.Fields(PlainText(fragment)))
	if words == 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	return max(minutes, 1)
}

// Markdown converts the sanitised fragment to Markdown.
func Markdown(fragment string) (string, error) {
	safe, err := Sanitize(fragment)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(safe)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func parseFragment(fragment string) ([]*html.Node, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return nodes, nil
}

// clean returns the nodes that replace n in the sanitised tree.
func clean(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}
	case html.ElementNode:
	default:
		return nil
	}

	if dropped[n.DataAtom] {
		return nil
	}

	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, clean(c)...)
	}

	attrs, ok := allowed[n.DataAtom]
	if !ok {
		return children
	}

	out := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	for _, a := range n.Attr {
		if a.Namespace != "" || !slices.Contains(attrs, a.Key) {
			continue
		}
		if (a.Key == "href" || a.Key == "src") && !safeURL(a.Val) {
			continue
		}
		out.Attr = append(out.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	if n.DataAtom == atom.A && hasAttr(out, "href") && isExternal(attrValue(out, "href")) {
		out.Attr = append(out.Attr, html.Attribute{Key: "rel", Val: "noopener noreferrer"})
	}
	if n.DataAtom == atom.Img && !hasAttr(out, "src") {
		return nil
	}
	for _, c := range children {
		out.AppendChild(c)
	}
	return []*html.Node{out}
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	default:
		return false
	}
}

func isExternal(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && dropped[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode && !inline[n.DataAtom] {
		b.WriteByte(' ')
	}
}

func hasAttr(n *html.Node, key string) bool {
	return attrValue(n, key) != ""
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
