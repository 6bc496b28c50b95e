package extractor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/normalize"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func TestExtractAliceExample(t *testing.T) {
	const pageURL = "https://www.tiktok.com/@alice/video/123456"
	page := &models.RawPage{
		URL: pageURL,
		HTML: `<html><head>
			<title>hello #fun | TikTok</title>
			<meta property="og:title" content="Alice on TikTok">
		</head><body>
			<span data-e2e="browse-video-desc">hello #fun</span>
		</body></html>`,
	}

	raw := New().Extract(page)
	rec, err := normalize.Record(raw, pageURL)
	require.NoError(t, err)

	assert.Equal(t, "123456", rec.ID)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "Alice", rec.Author)
	assert.Equal(t, "hello #fun", rec.Description)
	assert.Equal(t, []string{"#fun"}, rec.Hashtags)
	assert.Equal(t, "0", rec.Likes)
	assert.Equal(t, "N/A", rec.Views)
}

func TestExtractFullPage(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@dana/video/789",
		HTML: loadFixture(t, "video_page.html"),
	}

	raw := New().Extract(page)

	assert.Equal(t, "dana", raw.Username)
	assert.Equal(t, "Dana", raw.Author)
	assert.Equal(t, "Road trip vibes", raw.Title)
	assert.Equal(t, "road trip vibes", raw.Description)
	assert.Contains(t, raw.FullDescription, "12.4K Likes")
	assert.Equal(t, "12.4K", raw.Likes)
	assert.Equal(t, "310", raw.Comments)
	assert.Equal(t, "", raw.Shares, "non-numeric share label must fail the count check")
	assert.Equal(t, "1.1M", raw.Views)
	assert.Equal(t, "3-14", raw.Date)
	assert.Equal(t, "original sound - Dana Songs", raw.AudioInfo)
	assert.Equal(t, []string{"#travel", "#roadtrip"}, raw.Hashtags)
	assert.Equal(t, "https://v16.tiktokcdn.com/video/789.mp4", raw.VideoURL)
	assert.Equal(t, "https://p16.tiktokcdn.com/thumb/789.jpeg", raw.ThumbnailURL)
	assert.Equal(t, "video.other", raw.RawMetadata["og:type"])
	assert.NotContains(t, raw.RawMetadata, "empty")
}

func TestExtractUsesPageTitleFirst(t *testing.T) {
	page := &models.RawPage{
		URL:   "https://www.tiktok.com/@dana/video/789",
		Title: "  Rendered title | TikTok ",
		HTML:  loadFixture(t, "video_page.html"),
	}
	assert.Equal(t, "Rendered title", New().Extract(page).Title)
}

func TestExtractRegexFallbacks(t *testing.T) {
	page := &models.RawPage{
		URL: "https://www.tiktok.com/@erin/video/55",
		HTML: `<html><head>
			<meta name="description" content="Erin on TikTok. Posted 7-21. original sound - Erin Beats. more">
		</head><body><p>nothing structured here</p></body></html>`,
		Text: `Erin 2.5K likes 88 comments 12 shares 40.1K views "a caption long enough to count"`,
	}

	raw := New().Extract(page)

	assert.Equal(t, "2.5K", raw.Likes)
	assert.Equal(t, "88", raw.Comments)
	assert.Equal(t, "12", raw.Shares)
	assert.Equal(t, "40.1K", raw.Views)
	assert.Equal(t, "a caption long enough to count", raw.Description)
	assert.Equal(t, "7-21", raw.Date)
	assert.Equal(t, "Erin Beats", raw.AudioInfo)
}

func TestExtractDescriptionFallbackScansVisibleText(t *testing.T) {
	html := `<html><head><script>var cfg = {"k": "a quoted script string of some length"};</script></head>
		<body><div title="a quoted attribute that is long enough">plain body</div></body></html>`

	page := &models.RawPage{URL: "https://www.tiktok.com/@erin/video/55", HTML: html, Text: "plain body"}
	assert.Empty(t, New().Extract(page).Description, "quoted strings in markup are not captions")

	page.Text = `plain body "the caption as rendered on screen"`
	assert.Equal(t, "the caption as rendered on screen", New().Extract(page).Description)
}

func TestExtractSelectorBeatsRegex(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@erin/video/55",
		HTML: `<html><body><strong data-e2e="like-count">900</strong></body></html>`,
		Text: `900 5K likes`,
	}
	assert.Equal(t, "900", New().Extract(page).Likes)
}

func TestExtractLikeButtonFallbackSelector(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@erin/video/55",
		HTML: `<html><body><button data-e2e="browse-like-icon"><span>4.2M</span></button></body></html>`,
	}
	assert.Equal(t, "4.2M", New().Extract(page).Likes)
}

func TestExtractHashtagSources(t *testing.T) {
	t.Run("anchors win over description", func(t *testing.T) {
		page := &models.RawPage{
			URL: "https://www.tiktok.com/@x/video/1",
			HTML: `<html><body>
				<span data-e2e="browse-video-desc">caption #one #two</span>
				<a href="/tag/three">#three</a>
			</body></html>`,
		}
		assert.Equal(t, []string{"#three"}, New().Extract(page).Hashtags)
	})

	t.Run("repeated anchors collapse in document order", func(t *testing.T) {
		page := &models.RawPage{
			URL: "https://www.tiktok.com/@x/video/1",
			HTML: `<html><body>
				<a href="/tag/four">#four</a>
				<a href="/tag/three">#three</a>
				<a href="/tag/four?lang=en">#four</a>
			</body></html>`,
		}
		assert.Equal(t, []string{"#four", "#three"}, New().Extract(page).Hashtags)
	})

	t.Run("description when no anchors", func(t *testing.T) {
		page := &models.RawPage{
			URL:  "https://www.tiktok.com/@x/video/1",
			HTML: `<html><body><span data-e2e="browse-video-desc">caption #one #two #one</span></body></html>`,
		}
		assert.Equal(t, []string{"#one", "#two"}, New().Extract(page).Hashtags)
	})
}

func TestExtractDescriptionFallsBackToOGDescription(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@x/video/1",
		HTML: `<html><head><meta property="og:description" content="from og"></head><body></body></html>`,
	}
	assert.Equal(t, "from og", New().Extract(page).Description)
}

func TestExtractSourceElementVideo(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@x/video/1",
		HTML: `<html><body><video><source src="https://cdn.example/v.mp4"></video></body></html>`,
	}
	assert.Equal(t, "https://cdn.example/v.mp4", New().Extract(page).VideoURL)
}

func TestExtractEmptyPage(t *testing.T) {
	raw := New().Extract(&models.RawPage{URL: "https://www.tiktok.com/@x/video/1"})

	assert.Equal(t, "x", raw.Username)
	assert.Empty(t, raw.Description)
	assert.Empty(t, raw.Hashtags)
	assert.NotNil(t, raw.RawMetadata)
}

func TestVisibleTextSkipsScripts(t *testing.T) {
	page := &models.RawPage{
		URL:  "https://www.tiktok.com/@x/video/1",
		HTML: `<html><body><script>var s = "99 likes";</script><p>3 likes</p></body></html>`,
	}
	assert.Equal(t, "3", New().Extract(page).Likes)
}

func TestLooksRendered(t *testing.T) {
	assert.True(t, LooksRendered(&models.RawPage{HTML: `<meta property="og:title" content="x">`}))
	assert.True(t, LooksRendered(&models.RawPage{HTML: `<span data-e2e="browse-video-desc">x</span>`}))
	assert.False(t, LooksRendered(&models.RawPage{HTML: `<div id="app"></div>`}))
	assert.False(t, LooksRendered(nil))
}
