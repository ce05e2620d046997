package extract

import (
	"strings"

	"github.com/dgallion1/hansardgest/internal/doctree"
)

// speakerAttrs are identity attributes read directly off an utterance or
// interjection element, in preference order.
var speakerAttrs = []string{"nameid", "speaker", "id"}

// nullSpeakers are placeholder identity values that mean "nobody".
var nullSpeakers = map[string]bool{
	"null":    true,
	"none":    true,
	"unknown": true,
	"10000":   true,
}

// speakerStrategy inspects a node and reports a speaker token if it finds an
// unambiguous one.
type speakerStrategy struct {
	name    string
	resolve func(*doctree.Node) (string, bool)
}

// speakerStrategies run in order; the first success wins. Schemas from
// different eras record identity in different places.
var speakerStrategies = []speakerStrategy{
	{"attribute", speakerFromAttr},
	{"talker", speakerFromTalker},
	{"name.id", speakerFromNameIDText},
	{"name@nameid", speakerFromNameElements},
	{"@nameid", speakerFromAnyNameID},
}

// ResolveSpeaker returns the canonical speaker token for an utterance or
// interjection element, or "" when none of the strategies finds exactly one
// identity.
func ResolveSpeaker(n *doctree.Node) string {
	speaker, _ := resolveSpeaker(n)
	return speaker
}

// resolveSpeaker also reports which strategy matched, for tests and
// diagnostics.
func resolveSpeaker(n *doctree.Node) (string, string) {
	if n == nil {
		return "", ""
	}
	for _, s := range speakerStrategies {
		if v, ok := s.resolve(n); ok {
			return v, s.name
		}
	}
	return "", ""
}

func speakerFromAttr(n *doctree.Node) (string, bool) {
	for _, key := range speakerAttrs {
		v, ok := n.Attr(key)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || nullSpeakers[strings.ToLower(v)] {
			continue
		}
		return v, true
	}
	return "", false
}

// speakerFromTalker follows talk.start > talker > name.id, the layout of the
// oldest schema.
func speakerFromTalker(n *doctree.Node) (string, bool) {
	ts := n.Child("talk.start")
	if ts == nil {
		return "", false
	}
	talker := ts.Child("talker")
	if talker == nil {
		return "", false
	}
	id := talker.Child("name.id")
	if id == nil {
		return "", false
	}
	return nonNull(doctree.CollapseSpace(id.Text()))
}

func speakerFromNameIDText(n *doctree.Node) (string, bool) {
	var values []string
	for _, id := range n.FindAll("name.id") {
		values = append(values, doctree.CollapseSpace(id.Text()))
	}
	return unique(values)
}

func speakerFromNameElements(n *doctree.Node) (string, bool) {
	var values []string
	for _, name := range n.FindAll("name") {
		if v, ok := name.Attr("nameid"); ok {
			values = append(values, strings.TrimSpace(v))
		}
	}
	return unique(values)
}

func speakerFromAnyNameID(n *doctree.Node) (string, bool) {
	var values []string
	for _, c := range n.Children {
		c.Walk(func(d *doctree.Node) bool {
			if v, ok := d.Attr("nameid"); ok {
				values = append(values, strings.TrimSpace(v))
			}
			return true
		})
	}
	return unique(values)
}

// unique returns the single distinct usable value, if there is exactly one.
func unique(values []string) (string, bool) {
	found := ""
	for _, v := range values {
		if v == "" || nullSpeakers[strings.ToLower(v)] {
			continue
		}
		if found != "" && v != found {
			return "", false
		}
		found = v
	}
	return nonNull(found)
}

func nonNull(v string) (string, bool) {
	if v == "" || nullSpeakers[strings.ToLower(v)] {
		return "", false
	}
	return v, true
}
