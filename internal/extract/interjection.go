package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/hansardgest/internal/doctree"
)

var interjectionTags = []string{"interjection", "interject"}

// metaTags carry speaker metadata or page furniture, never spoken text.
var metaTags = map[string]bool{
	"talker":        true,
	"page.no":       true,
	"time.stamp":    true,
	"debateinfo":    true,
	"subdebateinfo": true,
	"title":         true,
}

const wrapperTag = "talk.text"

// Placeholder returns the inline marker for the interjection with the given
// 1-based sequence number.
func Placeholder(seq int) string {
	return fmt.Sprintf("[INTERJECTION%02d]", seq)
}

type piece struct {
	text string
	ij   *splitInterjection
}

type splitInterjection struct {
	speaker string
	text    string
	sibling bool // found next to the talk.text wrapper rather than inside it
	dropped bool
}

// SplitInterjections separates the interjections recorded in body from its
// continuous text. The main text carries one placeholder per returned
// interjection, in document order.
func SplitInterjections(body *doctree.Node) ([]Interjection, string) {
	if body == nil {
		return nil, ""
	}

	pieces, hasWrapper := collectPieces(body, false)
	if !hasText(pieces) {
		pieces, _ = collectPieces(body, true)
	}
	if hasWrapper {
		realign(pieces)
	}

	var (
		out   []Interjection
		parts []string
	)
	for _, p := range pieces {
		if p.ij == nil {
			parts = append(parts, p.text)
			continue
		}
		if p.ij.dropped {
			continue
		}
		seq := len(out) + 1
		out = append(out, Interjection{Sequence: seq, Speaker: p.ij.speaker, Text: p.ij.text})
		parts = append(parts, Placeholder(seq))
	}
	return out, strings.Join(parts, " ")
}

// collectPieces splits the children of body into text and interjection
// pieces. With allText unset only para and p text counts; it is set for the
// retry on bodies that have no paragraphs at all.
func collectPieces(body *doctree.Node, allText bool) ([]piece, bool) {
	var pieces []piece
	hasWrapper := false
	for _, c := range body.Children {
		if c.IsElement(wrapperTag) {
			hasWrapper = true
			for _, gc := range c.Children {
				pieces = appendPiece(pieces, gc, false, allText)
			}
			continue
		}
		pieces = appendPiece(pieces, c, true, allText)
	}
	return pieces, hasWrapper
}

func hasText(pieces []piece) bool {
	for _, p := range pieces {
		if p.ij == nil && p.text != "" {
			return true
		}
	}
	return false
}

func appendPiece(pieces []piece, c *doctree.Node, direct, allText bool) []piece {
	if isInterjection(c) {
		return append(pieces, piece{ij: &splitInterjection{
			speaker: ResolveSpeaker(c),
			text:    paragraphText(c, true),
			sibling: direct && c.IsElement(interjectionTags...),
		}})
	}
	if t := paragraphText(c, allText); t != "" {
		return append(pieces, piece{text: t})
	}
	return pieces
}

// realign matches interjection elements that sit beside the talk.text
// wrapper with the interjections found inside it, by position. A matched
// sibling lends its speaker (and text, when the inner one has none) and
// emits no placeholder of its own.
func realign(pieces []piece) {
	var inner, outer []*splitInterjection
	for _, p := range pieces {
		if p.ij == nil {
			continue
		}
		if p.ij.sibling {
			outer = append(outer, p.ij)
		} else {
			inner = append(inner, p.ij)
		}
	}
	for k := 0; k < len(inner) && k < len(outer); k++ {
		if outer[k].speaker != "" {
			inner[k].speaker = outer[k].speaker
		}
		if inner[k].text == "" {
			inner[k].text = outer[k].text
		}
		outer[k].dropped = true
	}
}

func isInterjection(n *doctree.Node) bool {
	if n.IsElement(interjectionTags...) {
		return true
	}
	if !n.IsElement() {
		return false
	}
	found := false
	n.Walk(func(d *doctree.Node) bool {
		if found {
			return false
		}
		if d.IsElement("span") {
			class, _ := d.Attr("class")
			class = strings.ToLower(class)
			if strings.Contains(class, "interject") && !strings.Contains(class, "general") {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// paragraphText returns the whitespace-collapsed text of the para and p
// elements under n, space-joined. When n has none, allText selects between
// all of n's text and "".
func paragraphText(n *doctree.Node, allText bool) string {
	if n.Type == doctree.TextNode {
		if !allText {
			return ""
		}
		return doctree.CollapseSpace(n.Data)
	}
	if metaTags[n.Tag] {
		return ""
	}

	var paras []string
	n.Walk(func(d *doctree.Node) bool {
		if d != n && metaTags[d.Tag] {
			return false
		}
		if d.IsElement("para", "p") {
			if t := doctree.CollapseSpace(d.Text()); t != "" {
				paras = append(paras, t)
			}
			return false
		}
		return true
	})
	if len(paras) > 0 {
		return strings.Join(paras, " ")
	}
	if !allText {
		return ""
	}

	var sb strings.Builder
	n.Walk(func(d *doctree.Node) bool {
		if d.Type == doctree.TextNode {
			sb.WriteString(d.Data)
			return false
		}
		return d == n || !metaTags[d.Tag]
	})
	return doctree.CollapseSpace(sb.String())
}
