package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// source selects which part of the snapshot a fallback pattern scans.
type source int

const (
	fromText source = iota
	fromMetaDescription
)

// pattern is a regex fallback. The first capture group is the value when
// the expression has one, otherwise the whole match.
type pattern struct {
	src source
	re  *regexp.Regexp
}

func (p pattern) find(s *snapshot) string {
	var haystack string
	switch p.src {
	case fromText:
		haystack = s.text
	case fromMetaDescription:
		haystack = s.meta["description"]
	}
	m := p.re.FindStringSubmatch(haystack)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[0])
}

// rule is an ordered list of selector strategies followed by regex
// fallbacks. Selectors always run before patterns.
type rule struct {
	selectors []cascadia.Selector
	accept    func(string) bool
	patterns  []pattern
}

// apply returns the first selector text that is non-empty and passes the
// format check, else the first pattern hit, else "".
func (r rule) apply(s *snapshot) string {
	for _, sel := range r.selectors {
		node := s.doc.FindMatcher(sel).First()
		if node.Length() == 0 {
			continue
		}
		v := strings.TrimSpace(node.Text())
		if v == "" {
			continue
		}
		if r.accept != nil && !r.accept(v) {
			continue
		}
		return v
	}
	for _, p := range r.patterns {
		if v := p.find(s); v != "" {
			return v
		}
	}
	return ""
}

func selectors(css ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(css))
	for i, c := range css {
		out[i] = cascadia.MustCompile(c)
	}
	return out
}

var (
	reCount     = regexp.MustCompile(`^\d+(\.\d+)?[KMBkmb]?$`)
	reShortDate = regexp.MustCompile(`^(\d{4}-)?\d{1,2}-\d{1,2}$`)
	reHashtag   = regexp.MustCompile(`#[a-zA-Z0-9_]+`)
)

func isCount(v string) bool { return reCount.MatchString(v) }

func isShortDate(v string) bool { return reShortDate.MatchString(v) }

func countsNear(word string) pattern {
	return pattern{src: fromText, re: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?[KMB]?) ` + word)}
}

var (
	descriptionRule = rule{
		selectors: selectors(
			`span[data-e2e="browse-video-desc"]`,
			`h1`,
			`span.tiktok-j2a19r-SpanText`,
			`div[data-e2e="browse-video-desc"]`,
			`div[class*="DivContainer"] > span`,
		),
		patterns: []pattern{
			{src: fromText, re: regexp.MustCompile(`"([^"]{10,100})"`)},
		},
	}

	likesRule = rule{
		selectors: selectors(
			`strong[data-e2e="like-count"]`,
			`span[data-e2e="like-count"]`,
			`div[data-e2e="like-count"]`,
			`button[data-e2e*="like"] span`,
		),
		accept:   isCount,
		patterns: []pattern{countsNear("likes")},
	}

	commentsRule = rule{
		selectors: selectors(
			`strong[data-e2e="comment-count"]`,
			`span[data-e2e="comment-count"]`,
			`div[data-e2e="comment-count"]`,
		),
		accept:   isCount,
		patterns: []pattern{countsNear("comments")},
	}

	sharesRule = rule{
		selectors: selectors(
			`strong[data-e2e="share-count"]`,
			`span[data-e2e="share-count"]`,
			`div[data-e2e="share-count"]`,
		),
		accept:   isCount,
		patterns: []pattern{countsNear("shares")},
	}

	viewsRule = rule{
		selectors: selectors(`strong[data-e2e="video-views"]`),
		accept:    isCount,
		patterns:  []pattern{countsNear("views")},
	}

	dateRule = rule{
		selectors: selectors(`span[data-e2e="browser-nickname"] span:last-child`),
		accept:    isShortDate,
		patterns: []pattern{
			{src: fromMetaDescription, re: regexp.MustCompile(`\d{1,2}-\d{1,2}`)},
			{src: fromText, re: regexp.MustCompile(`\b\d{1,2}-\d{1,2}\b`)},
		},
	}

	audioRule = rule{
		selectors: selectors(
			`h4[data-e2e="browse-music"] a`,
			`[data-e2e="browse-music"]`,
		),
		patterns: []pattern{
			{src: fromMetaDescription, re: regexp.MustCompile(`original sound - ([^.]+)`)},
		},
	}

	hashtagAnchors = cascadia.MustCompile(`a[href*="/tag/"]`)
)

// hashtags returns "#tag" texts from tag anchors in document order, each
// tag once. Only when there are none does it scan the description.
func hashtags(doc *goquery.Document, description string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	doc.FindMatcher(hashtagAnchors).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); strings.HasPrefix(text, "#") {
			add(text)
		}
	})
	if len(tags) > 0 {
		return tags
	}

	for _, tag := range reHashtag.FindAllString(description, -1) {
		add(tag)
	}
	return tags
}
