package markup

import (
	"encoding/xml"
	"strings"

	"golang.org/x/net/html"
)

// serialize writes the lenient parse result as strict XML. A single
// top-level element becomes the document root; several are wrapped in a div.
func serialize(nodes []*html.Node) (string, error) {
	var elements []*html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			elements = append(elements, n)
		}
	}
	if len(elements) == 0 {
		return "", ErrUnparsableMarkup
	}

	var sb strings.Builder
	if len(elements) == 1 {
		writeNode(&sb, elements[0])
		return sb.String(), nil
	}

	sb.WriteString("<div>")
	for _, n := range nodes {
		writeNode(&sb, n)
	}
	sb.WriteString("</div>")
	return sb.String(), nil
}

func writeNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		escape(sb, n.Data)
	case html.ElementNode:
		name := xmlName(n.Data)
		if name == "" {
			writeChildren(sb, n)
			return
		}
		sb.WriteByte('<')
		sb.WriteString(name)
		writeAttrs(sb, n.Attr)
		if n.FirstChild == nil {
			sb.WriteString("/>")
			return
		}
		sb.WriteByte('>')
		writeChildren(sb, n)
		sb.WriteString("</")
		sb.WriteString(name)
		sb.WriteByte('>')
	default:
		// Comments, doctypes and stray declarations carry no content.
	}
}

func writeChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(sb, c)
	}
}

func writeAttrs(sb *strings.Builder, attrs []html.Attribute) {
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a.Namespace != "" || strings.Contains(a.Key, ":") || strings.HasPrefix(a.Key, "xmlns") {
			continue
		}
		key := xmlName(a.Key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteString(`="`)
		escape(sb, a.Val)
		sb.WriteByte('"')
	}
}

func escape(sb *strings.Builder, s string) {
	// EscapeText only fails when the writer does; strings.Builder never does.
	_ = xml.EscapeText(sb, []byte(s))
}

// xmlName maps an HTML token name onto a valid, lower-case XML name. Names
// with no usable characters map to "".
func xmlName(s string) string {
	s = strings.ToLower(s)
	if s == titleAlias {
		return "title"
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			b.WriteRune(r)
		case b.Len() > 0 && (r >= '0' && r <= '9' || r == '.' || r == '-'):
			b.WriteRune(r)
		case b.Len() > 0:
			b.WriteByte('_')
		}
	}
	return b.String()
}
