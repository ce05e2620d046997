// Package markup repairs raw Hansard transcripts into well-formed XML.
//
// Transcripts span several decades of schemas and are frequently not valid
// XML: stray HTML entities, undeclared namespace prefixes from Word exports,
// unclosed tags and inconsistent casing. Normalize runs a fixed sequence of
// textual repairs, parses the result with the lenient HTML5 parser from
// golang.org/x/net/html and re-serializes the recovered tree as strict XML.
package markup

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/hansardgest/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrEmptyDocument is returned for zero-length or whitespace-only input.
	ErrEmptyDocument = errors.New("empty document")
	// ErrUnparsableMarkup is returned when no element survives lenient parsing.
	ErrUnparsableMarkup = errors.New("unparsable markup")
)

// EntityReplacements maps named entities that strict XML parsers reject to
// literal text.
var EntityReplacements = []struct {
	Entity string
	Text   string
}{
	{"&mdash;", "---"},
	{"&ndash;", "-"},
	{"&nbsp;", " "},
}

// DeniedPrefixes are Word/Office namespace prefixes whose tags carry no
// transcript content.
var DeniedPrefixes = []string{"mc", "v", "o", "w10", "w", "o14", "m"}

var (
	deniedTagPattern  = regexp.MustCompile(`(?i)<(/?)(` + strings.Join(DeniedPrefixes, "|") + `):[^>]*>`)
	xmlnsDeclPattern  = regexp.MustCompile(`\s(xmlns:[a-zA-Z0-9]+)="[^"]+"`)
	prefixAttrPattern = regexp.MustCompile(`\s[a-zA-Z0-9]+:[a-zA-Z0-9\-]+="[^"]*"`)
	selfClosePattern  = regexp.MustCompile(`<([A-Za-z][^\s/>]*)([^<>]*?)/>`)
	rootTagPattern    = regexp.MustCompile(`(?i)<hansard[\s>]`)
	titleTagPattern   = regexp.MustCompile(`(?i)<(/?)title([\s>/])`)
)

// titleAlias stands in for <title> during lenient parsing; HTML treats title
// content as raw text and would flatten any inline markup inside it.
const titleAlias = "x-title"

// Normalize turns raw transcript text into well-formed XML.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyDocument
	}

	s := stripPreamble(raw)
	s = replaceEntities(s)
	s = stripNamespaces(s)
	s = expandSelfClosing(s)
	s = titleTagPattern.ReplaceAllString(s, "<${1}"+titleAlias+"${2}")

	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsableMarkup, err)
	}

	out, err := serialize(nodes)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Parse normalizes raw and builds the document tree from the result.
func Parse(raw string) (*doctree.Node, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	root, err := doctree.ParseString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableMarkup, err)
	}
	return root, nil
}

// stripPreamble drops anything before the line holding the root tag. When
// there is no such line, a leading declaration line is removed instead.
func stripPreamble(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if rootTagPattern.MatchString(line) {
			if i > 0 {
				return strings.Join(lines[i:], "\n")
			}
			return s
		}
	}
	first := lines[0]
	if strings.Contains(first, "DOCTYPE") || strings.Contains(first, "encoding") || strings.Contains(first, "<?xml") {
		return strings.Join(lines[1:], "\n")
	}
	return s
}

func replaceEntities(s string) string {
	for _, e := range EntityReplacements {
		s = strings.ReplaceAll(s, e.Entity, e.Text)
	}
	return s
}

func stripNamespaces(s string) string {
	s = deniedTagPattern.ReplaceAllString(s, "")
	s = xmlnsDeclPattern.ReplaceAllString(s, "")
	s = prefixAttrPattern.ReplaceAllString(s, "")
	return s
}

// expandSelfClosing rewrites <tag/> as <tag></tag>. The HTML parser ignores
// the self-closing flag on non-void elements, which would otherwise swallow
// every following sibling.
func expandSelfClosing(s string) string {
	return selfClosePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := selfClosePattern.FindStringSubmatch(m)
		name := sub[1]
		if isVoid(name) {
			return m
		}
		return "<" + name + sub[2] + "></" + name + ">"
	})
}

func isVoid(name string) bool {
	switch strings.ToLower(name) {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "source", "track", "wbr":
		return true
	}
	return false
}
