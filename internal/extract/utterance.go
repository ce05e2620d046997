package extract

import (
	"github.com/dgallion1/hansardgest/internal/doctree"
)

// Classify walks a segment in document order and returns its utterances.
// An emitted element's subtree is not searched for further utterances.
func Classify(seg ChamberSegment) []Utterance {
	if seg.Root == nil {
		return nil
	}
	idx := seg.Index
	if idx == nil {
		idx = doctree.NewIndex(seg.Root)
	}
	c := &classifier{idx: idx, consumed: make(map[*doctree.Node]bool)}
	c.dispatch(seg.Root)
	return c.out
}

type classifier struct {
	idx      *doctree.Index
	consumed map[*doctree.Node]bool
	out      []Utterance
}

func (c *classifier) visit(n *doctree.Node) {
	for _, child := range n.Elements() {
		if c.consumed[child] {
			continue
		}
		c.dispatch(child)
	}
}

func (c *classifier) dispatch(n *doctree.Node) {
	switch n.Tag {
	case "question":
		c.question(n)
	case "answer":
		c.emit(c.build(n, Answer))
	case "speech":
		c.emit(c.build(n, Speech))
	case "petition":
		c.emit(c.build(n, Petition))
	default:
		c.visit(n)
	}
}

func (c *classifier) question(q *doctree.Node) {
	var answer *doctree.Node
	for _, sib := range c.idx.FollowingSiblings(q) {
		if sib.IsElement("answer") && !c.consumed[sib] {
			answer = sib
			break
		}
	}
	u := c.build(q, Question)
	if answer == nil {
		c.emit(u)
		return
	}
	c.consumed[answer] = true
	a := c.build(answer, Answer)

	switch {
	case u.Text != "" && a.Text != "":
		u.LinkedAnswer = &a
		c.emit(u)
	case u.Text == "":
		c.emit(a)
	default:
		c.emit(u)
	}
}

func (c *classifier) emit(u Utterance) {
	if u.Text == "" {
		return
	}
	c.out = append(c.out, u)
}

func (c *classifier) build(n *doctree.Node, kind Kind) Utterance {
	interjections, text := SplitInterjections(n)
	if interjections == nil {
		interjections = []Interjection{}
	}
	return Utterance{
		Kind:          kind,
		Speaker:       ResolveSpeaker(n),
		Text:          text,
		DebateTitle:   DebateTitle(n, c.idx),
		Interjections: interjections,
	}
}
