package extract

import (
	"slices"
	"strings"

	"github.com/dgallion1/hansardgest/internal/doctree"
)

var titleHolders = []string{"debateinfo", "subdebateinfo", "title"}

// DebateTitle returns the hierarchical debate title of n, outermost first,
// joined with ", ". Each ancestor contributes at most one title.
func DebateTitle(n *doctree.Node, idx *doctree.Index) string {
	if n == nil || idx == nil {
		return ""
	}
	var titles []string
	for _, a := range idx.Ancestors(n) {
		if t := levelTitle(a); t != "" {
			titles = append(titles, t)
		}
	}
	slices.Reverse(titles)
	return strings.Join(titles, ", ")
}

func levelTitle(a *doctree.Node) string {
	for _, tag := range titleHolders {
		h := a.Child(tag)
		if h == nil {
			continue
		}
		if h.Tag != "title" {
			h = h.Child("title")
		}
		return doctree.CollapseSpace(h.Text())
	}
	return ""
}
