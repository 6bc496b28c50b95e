package models

import (
	"net/url"
	"regexp"
	"strings"
)

const tiktokDomain = "tiktok.com"

var reUsername = regexp.MustCompile(`@([^/?#]+)`)

// ValidateVideoURL checks that raw is an absolute http(s) URL on tiktok.com
// or one of its subdomains. It performs no network access.
func ValidateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewScrapeError(ErrCodeInvalidURL, "url is empty", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewScrapeError(ErrCodeInvalidURL, "url does not parse", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewScrapeError(ErrCodeInvalidURL, "url must use http or https: "+raw, nil)
	}
	host := strings.ToLower(u.Hostname())
	if host != tiktokDomain && !strings.HasSuffix(host, "."+tiktokDomain) {
		return NewScrapeError(ErrCodeInvalidURL, "not a TikTok URL: "+raw, nil)
	}
	return nil
}

// UsernameFromURL returns the handle after "@" in a TikTok URL, or "".
func UsernameFromURL(raw string) string {
	if m := reUsername.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
