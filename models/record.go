package models

// RawPage is the rendered snapshot a fetch engine hands to the extractor.
// It lives only for the duration of one URL's processing.
type RawPage struct {
	// URL is the address that was requested.
	URL string

	// FinalURL is the address after redirects.
	FinalURL string

	// HTML is the serialized DOM after rendering.
	HTML string

	// Text is document.body.innerText. Empty when the engine could not
	// render, in which case the extractor derives it from HTML.
	Text string

	// Title is document.title.
	Title string

	// Screenshot is a PNG of the viewport, set only in debug mode.
	Screenshot []byte

	// Engine names the engine that produced the page ("rod", "http").
	Engine string
}

// RawRecord holds the fields the extractor found. Anything it could not
// find is left at the zero value.
type RawRecord struct {
	URL             string
	Author          string
	Username        string
	Title           string
	Description     string
	FullDescription string
	Likes           string
	Comments        string
	Shares          string
	Views           string
	Hashtags        []string
	Date            string
	VideoURL        string
	ThumbnailURL    string
	AudioInfo       string
	RawMetadata     map[string]string
}

// VideoRecord is the normalized, persistable representation of one video.
// Every field is always present; ID is non-empty for any record that
// reaches the sink.
type VideoRecord struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Author          string            `json:"author"`
	Username        string            `json:"username"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	FullDescription string            `json:"fullDescription"`
	Likes           string            `json:"likes"`
	Comments        string            `json:"comments"`
	Shares          string            `json:"shares"`
	Views           string            `json:"views"`
	Hashtags        []string          `json:"hashtags"`
	Date            string            `json:"date"`
	VideoURL        string            `json:"videoUrl"`
	ThumbnailURL    string            `json:"thumbnailUrl"`
	AudioInfo       string            `json:"audioInfo"`
	RawMetadata     map[string]string `json:"rawMetadata"`
}
