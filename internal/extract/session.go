package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/hansardgest/internal/doctree"
)

// headerTags are top-level elements that hold metadata, not proceedings.
var headerTags = map[string]bool{
	"session.header": true,
	"header":         true,
	"metadata":       true,
	"docinfo":        true,
	"head":           true,
	"title":          true,
	"day.start":      true,
}

// questionKeys are chamber keys whose content is question time.
var questionKeys = map[string]bool{
	"answers.to.questions": true,
	"questions":            true,
	"qwn":                  true,
	"answers":              true,
}

// utteranceKeys routes utterance elements found outside any chamber
// element to the chamber they belong to.
var utteranceKeys = map[string]string{
	"speech":   defaultFloorKey,
	"petition": defaultFloorKey,
	"question": defaultQAKey,
	"answer":   defaultQAKey,
}

var questionTitlePattern = regexp.MustCompile(`(?i)\b(questions?|answers?)\b`)

const (
	chamberSuffix   = ".xscript"
	floatingTag     = "debate"
	defaultFloorKey = "chamber"
	defaultQAKey    = "answers.to.questions"
)

// DateLayouts are tried in order against every date candidate: DD/MM/YYYY,
// DD/MM/YY and ISO. Day and month may omit the leading zero.
var DateLayouts = []string{"2/1/2006", "2/1/06", "2006-01-02"}

// SegmentOptions carries caller-side hints for segmentation.
type SegmentOptions struct {
	DateHint  string
	HouseHint string
	// DateOverrides maps known-bad date strings to corrected values.
	DateOverrides map[string]string
}

type segmentBuilder struct {
	key     string
	chamber Chamber
	keyed   *doctree.Node
	extra   []*doctree.Node
}

// Segment resolves the sitting metadata and splits the document into
// chamber segments. The input tree is not modified.
func Segment(root *doctree.Node, opts SegmentOptions) (SessionInfo, []ChamberSegment, error) {
	info, err := resolveSession(root, opts)
	if err != nil {
		return SessionInfo{}, nil, err
	}

	var builders []*segmentBuilder
	byKey := make(map[string]*segmentBuilder)
	lookup := func(key string) *segmentBuilder {
		if b, ok := byKey[key]; ok {
			return b
		}
		b := &segmentBuilder{key: key, chamber: chamberForKey(key)}
		byKey[key] = b
		builders = append(builders, b)
		return b
	}

	// A bare utterance document is its own segment.
	var children []*doctree.Node
	if key, ok := utteranceKeys[root.Tag]; ok {
		lookup(key).keyed = root
	} else {
		children = root.Elements()
	}

	for _, child := range children {
		switch {
		case headerTags[child.Tag]:
			continue
		case utteranceKeys[child.Tag] != "":
			b := lookup(utteranceKeys[child.Tag])
			b.extra = append(b.extra, child)
		case child.Tag == floatingTag:
			key := defaultFloorKey
			if questionTitlePattern.MatchString(floatingTitle(child)) {
				key = defaultQAKey
			}
			b := lookup(key)
			b.extra = append(b.extra, child)
		default:
			b := lookup(strings.TrimSuffix(child.Tag, chamberSuffix))
			if b.keyed == nil {
				b.keyed = child
			} else {
				b.extra = append(b.extra, child)
			}
		}
	}

	if len(builders) == 0 {
		return info, nil, ErrNoChambers
	}

	segments := make([]ChamberSegment, 0, len(builders))
	for _, b := range builders {
		r := b.root()
		segments = append(segments, ChamberSegment{
			Key:     b.key,
			Chamber: b.chamber,
			Root:    r,
			Index:   doctree.NewIndex(r),
			Session: info,
		})
	}
	return info, segments, nil
}

// root returns the keyed element itself, or a fresh container holding the
// keyed element's children followed by the merged floating debates.
func (b *segmentBuilder) root() *doctree.Node {
	if len(b.extra) == 0 {
		return b.keyed
	}
	container := doctree.NewElement(b.key)
	if b.keyed != nil {
		container.Tag = b.keyed.Tag
		container.Attrs = append([]doctree.Attr(nil), b.keyed.Attrs...)
		container.Children = append(container.Children, b.keyed.Children...)
	}
	container.Children = append(container.Children, b.extra...)
	return container
}

func chamberForKey(key string) Chamber {
	if questionKeys[key] {
		return QuestionsAndAnswers
	}
	return FloorDebate
}

func floatingTitle(debate *doctree.Node) string {
	if t := debate.Find("title"); t != nil {
		return doctree.CollapseSpace(t.Text())
	}
	return ""
}

func resolveSession(root *doctree.Node, opts SegmentOptions) (SessionInfo, error) {
	date, ok := resolveDate(root, opts)
	if !ok {
		return SessionInfo{}, ErrNoSessionDate
	}

	header := root.Child("session.header")
	if header == nil {
		header = root.Find("session.header")
	}

	info := SessionInfo{
		Date:             date,
		ParliamentNumber: headerInt(root, header, "parliament.no"),
		SessionNumber:    headerInt(root, header, "session.no"),
		PeriodNumber:     headerInt(root, header, "period.no"),
		House:            resolveHouse(root, header, opts.HouseHint),
	}
	return info, nil
}

func resolveDate(root *doctree.Node, opts SegmentOptions) (time.Time, bool) {
	var candidates []string
	candidates = append(candidates, opts.DateHint)
	if v, ok := root.Attr("date"); ok {
		candidates = append(candidates, v)
	}
	if ds := root.Find("day.start"); ds != nil {
		if v, ok := ds.Attr("date"); ok {
			candidates = append(candidates, v)
		}
		candidates = append(candidates, ds.Text())
	}
	if d := root.Find("date"); d != nil {
		candidates = append(candidates, d.Text())
	}

	for _, c := range candidates {
		if t, ok := ParseDate(c, opts.DateOverrides); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses s with DateLayouts after applying overrides.
func ParseDate(s string, overrides map[string]string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if fixed, ok := overrides[s]; ok {
		s = fixed
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func headerInt(root, header *doctree.Node, tag string) *int {
	var raw string
	if header != nil {
		if n := header.Find(tag); n != nil {
			raw = n.Text()
		}
	}
	if raw == "" {
		raw, _ = root.Attr(tag)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}

func resolveHouse(root, header *doctree.Node, hint string) string {
	if header != nil {
		if n := header.Find("chamber"); n != nil {
			if h := doctree.CollapseSpace(n.Text()); h != "" {
				return h
			}
		}
	}
	for _, key := range []string{"chamber", "house"} {
		if v, ok := root.Attr(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return hint
}
