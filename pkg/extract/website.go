package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-openapi/strfmt"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/net/html/charset"

	"github.com/calque-ai/docqa/pkg/rag"
)

// Elements that never carry page content.
const noiseSelector = "script, style, nav, footer, header, aside, iframe, noscript, svg, img, " +
	"video, audio, picture, object, embed"

// Elements whose text is collected, in document order.
const contentSelector = "article, main, .content, #content, p, h1, h2, h3, h4, h5, h6, li, td, th"

// minFragmentLength is the rune count a content fragment must exceed.
const minFragmentLength = 10

// ValidURL reports whether raw is an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	if !strfmt.Default.Validates("uri", raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Website fetches a page and extracts its readable text.
//
// Input: context, absolute http(s) URL
// Output: normalized page text
// Behavior: GET with the configured User-Agent and hard timeout. Transport
// failures and non-2xx responses are fetch errors. Noise elements are removed,
// then the meta description, title and content fragments are collected,
// de-duplicated in first-seen order, joined with newlines and cleaned.
//
// Example:
//
//	text, err := ex.Website(ctx, "https://go.dev/doc/")
func (e *Extractor) Website(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", rag.Validation("website", "invalid url %q", rawURL)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", rag.Fetch("website", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", rag.Fetch("website", resp.StatusCode, nil)
	}

	var body io.Reader = resp.Body
	if e.cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(body, e.cfg.MaxBodyBytes)
	}
	body, err = charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", rag.Extraction("website", "unsupported page encoding", err)
	}

	return ExtractHTML(body)
}

// ExtractHTML extracts readable text from an HTML document.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", rag.Extraction("website", "cannot parse HTML", err)
	}

	doc.Find(noiseSelector).Remove()

	parts := orderedmap.New[string, struct{}]()
	add := func(s string) {
		if s != "" {
			parts.Set(s, struct{}{})
		}
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		add(strings.TrimSpace(desc))
	}
	add(strings.TrimSpace(doc.Find("title").First().Text()))

	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) > minFragmentLength {
			add(text)
		}
	})

	lines := make([]string, 0, parts.Len())
	for pair := parts.Oldest(); pair != nil; pair = pair.Next() {
		lines = append(lines, pair.Key)
	}
	return CleanText(strings.Join(lines, "\n")), nil
}
