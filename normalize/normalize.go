// Package normalize turns extractor output into a complete VideoRecord.
// Everything here is pure: no I/O, same input gives the same record.
package normalize

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/use-agent/tokscrape/models"
)

// Defaults applied to fields the extractor could not find.
const (
	DefaultCount = "0"
	DefaultViews = "N/A"
)

var reVideoID = regexp.MustCompile(`/video/(\d+)`)

// VideoID derives the record id from a video URL: the digits after
// /video/, else the last path segment. Profile handles ("@name"), empty
// segments and a /video/ path without digits do not count as ids.
func VideoID(rawURL string) (string, error) {
	if m := reVideoID.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}

	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	missing := models.NewScrapeError(models.ErrCodeMissingID, "no video id in url: "+rawURL, nil)
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if slices.Contains(segments, "video") {
		return "", missing
	}
	seg := strings.TrimSuffix(segments[len(segments)-1], ".html")

	if seg == "" || strings.HasPrefix(seg, "@") {
		return "", missing
	}
	return seg, nil
}

// Record builds a VideoRecord from raw. The URL argument is the requested
// URL and is the only source of the id and, when raw lacks one, the
// username.
func Record(raw *models.RawRecord, rawURL string) (*models.VideoRecord, error) {
	id, err := VideoID(rawURL)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = &models.RawRecord{}
	}

	rec := &models.VideoRecord{
		ID:              id,
		URL:             rawURL,
		Author:          raw.Author,
		Username:        raw.Username,
		Title:           raw.Title,
		Description:     raw.Description,
		FullDescription: raw.FullDescription,
		Likes:           orDefault(raw.Likes, DefaultCount),
		Comments:        orDefault(raw.Comments, DefaultCount),
		Shares:          orDefault(raw.Shares, DefaultCount),
		Views:           orDefault(raw.Views, DefaultViews),
		Hashtags:        append([]string{}, raw.Hashtags...),
		Date:            raw.Date,
		VideoURL:        raw.VideoURL,
		ThumbnailURL:    raw.ThumbnailURL,
		AudioInfo:       raw.AudioInfo,
		RawMetadata:     make(map[string]string, len(raw.RawMetadata)),
	}
	for k, v := range raw.RawMetadata {
		rec.RawMetadata[k] = v
	}
	if rec.Username == "" {
		rec.Username = models.UsernameFromURL(rawURL)
	}
	return rec, nil
}

// Fill applies defaults to a record loaded from an external source, such
// as a previously written results file. The id is derived from URL when
// missing.
func Fill(rec *models.VideoRecord) error {
	if rec.ID == "" {
		id, err := VideoID(rec.URL)
		if err != nil {
			return err
		}
		rec.ID = id
	}
	rec.Likes = orDefault(rec.Likes, DefaultCount)
	rec.Comments = orDefault(rec.Comments, DefaultCount)
	rec.Shares = orDefault(rec.Shares, DefaultCount)
	rec.Views = orDefault(rec.Views, DefaultViews)
	if rec.Hashtags == nil {
		rec.Hashtags = []string{}
	}
	if rec.RawMetadata == nil {
		rec.RawMetadata = map[string]string{}
	}
	if rec.Username == "" {
		rec.Username = models.UsernameFromURL(rec.URL)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
