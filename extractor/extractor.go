// Package extractor pulls TikTok video fields out of a rendered page
// snapshot using ordered CSS selector strategies with regex fallbacks.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/tokscrape/models"
)

// snapshot is the parsed page shared by all field rules.
type snapshot struct {
	doc  *goquery.Document
	text string
	meta map[string]string
}

// Extractor is stateless; selectors are compiled once at package init.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract reads every field it can find. It never fails: a page that does
// not parse yields a record with only the URL-derived fields set.
func (e *Extractor) Extract(page *models.RawPage) *models.RawRecord {
	pageURL := page.URL
	if pageURL == "" {
		pageURL = page.FinalURL
	}
	rec := &models.RawRecord{
		URL:         pageURL,
		Username:    models.UsernameFromURL(pageURL),
		RawMetadata: map[string]string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		rec.Title = pageTitle(page.Title, "", "")
		return rec
	}

	s := &snapshot{
		doc:  doc,
		text: page.Text,
		meta: ExtractMeta(doc),
	}
	if s.text == "" {
		s.text = visibleText(doc)
	}
	rec.RawMetadata = s.meta

	ogTitle := s.meta["og:title"]
	rec.Title = pageTitle(page.Title, doc.Find("title").First().Text(), ogTitle)
	if ogTitle != "" {
		rec.Author = strings.TrimSpace(strings.SplitN(ogTitle, " on TikTok", 2)[0])
	}

	rec.Description = descriptionRule.apply(s)
	if rec.Description == "" {
		rec.Description = s.meta["og:description"]
	}
	rec.FullDescription = s.meta["description"]

	rec.Likes = likesRule.apply(s)
	rec.Comments = commentsRule.apply(s)
	rec.Shares = sharesRule.apply(s)
	rec.Views = viewsRule.apply(s)
	rec.Date = dateRule.apply(s)
	rec.AudioInfo = audioRule.apply(s)

	rec.Hashtags = hashtags(doc, rec.Description)
	rec.ThumbnailURL = s.meta["og:image"]
	rec.VideoURL = firstAttr(doc, "video[src]", "src")
	if rec.VideoURL == "" {
		rec.VideoURL = firstAttr(doc, "source[src]", "src")
	}

	return rec
}

// LooksRendered reports whether a page carries the markup the extractor
// depends on. The fetch dispatcher uses it to decide when a plain HTTP
// response is good enough.
func LooksRendered(page *models.RawPage) bool {
	if page == nil {
		return false
	}
	return strings.Contains(page.HTML, `property="og:title"`) ||
		strings.Contains(page.HTML, `data-e2e="browse-video-desc"`)
}

// pageTitle returns the part of the document title before the first "|".
func pageTitle(candidates ...string) string {
	for _, c := range candidates {
		if t := strings.TrimSpace(strings.SplitN(c, "|", 2)[0]); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

// visibleText approximates innerText for pages that were not rendered by a
// browser.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}
