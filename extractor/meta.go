package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractMeta collects every <meta> tag into a map keyed by its name
// attribute, or its property attribute when name is absent. Tags without
// content are skipped; later tags overwrite earlier ones.
func ExtractMeta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("name")
		if key == "" {
			key, _ = s.Attr("property")
		}
		content, _ := s.Attr("content")
		key = strings.TrimSpace(key)
		content = strings.TrimSpace(content)
		if key == "" || content == "" {
			return
		}
		meta[key] = content
	})
	return meta
}
