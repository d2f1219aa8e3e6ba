// Package extract turns raw inputs (text, PDF files, plain text files and web
// pages) into normalized plain text ready for chunking.
package extract

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/calque-ai/docqa/pkg/helpers"
)

// DefaultUserAgent is sent with every web fetch.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultFetchTimeout bounds a single web fetch.
const DefaultFetchTimeout = 15 * time.Second

// Config holds extractor settings.
type Config struct {
	// Hard deadline for a web fetch, applied on top of the caller's context.
	FetchTimeout time.Duration

	// User-Agent header for web fetches.
	UserAgent string

	// Upper bound on the HTML body read from a web page. 0 means unlimited.
	MaxBodyBytes int64

	// Optional. HTTP client for web fetches. Its Timeout is overridden by FetchTimeout.
	HTTPClient *http.Client
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: DefaultFetchTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: 10 << 20,
	}
}

// Extractor converts sources into normalized text.
type Extractor struct {
	cfg    Config
	client *http.Client
}

// New creates an Extractor. Zero config fields fall back to DefaultConfig values.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	client := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		client = &c
	}
	client.Timeout = cfg.FetchTimeout

	return &Extractor{cfg: cfg, client: client}
}

// Text normalizes caller-supplied text.
func (e *Extractor) Text(s string) string {
	return CleanText(s)
}

var (
	tabs        = regexp.MustCompile(`\t`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]{2,}`)
)

// CleanText applies the shared normalization to extracted text.
//
// Input: raw extracted text
// Output: normalized text
// Behavior: CRLF becomes LF, tabs become spaces, 3+ newlines become two, any
// remaining run of 2+ whitespace characters becomes one space, ends are trimmed.
//
// Example:
//
//	extract.CleanText("a\r\n\r\n\r\n\tb") // "a b"
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = tabs.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func wrap(err error, op string) error {
	return helpers.WrapError(err, "extract "+op)
}
