package rag

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMetadataFlatten(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 12, 30, 0, 123456789, time.UTC)

	tests := []struct {
		name     string
		meta     Metadata
		expected map[string]any
	}{
		{
			name: "reserved fields only",
			meta: Metadata{Source: SourceText, Part: 0, Timestamp: ts},
			expected: map[string]any{
				"source":    "text",
				"part":      0,
				"timestamp": "2025-03-01T12:30:00.123Z",
			},
		},
		{
			name: "caller cannot override reserved fields",
			meta: Metadata{
				Source:    SourcePDF,
				Part:      3,
				Timestamp: ts,
				Extra:     map[string]string{"source": "forged", "part": "99", "author": "ann"},
			},
			expected: map[string]any{
				"source":    "pdf",
				"part":      3,
				"timestamp": "2025-03-01T12:30:00.123Z",
				"author":    "ann",
			},
		},
		{
			name: "filename wins over caller extra",
			meta: Metadata{
				Source:    SourceTXT,
				Timestamp: ts,
				Filename:  "notes.txt",
				Extra:     map[string]string{"filename": "renamed.txt"},
			},
			expected: map[string]any{
				"source":    "txt",
				"part":      0,
				"timestamp": "2025-03-01T12:30:00.123Z",
				"filename":  "notes.txt",
			},
		},
		{
			name: "url default kept",
			meta: Metadata{Source: SourceWebsite, Part: 1, Timestamp: ts, URL: "https://example.com"},
			expected: map[string]any{
				"source":    "website",
				"part":      1,
				"timestamp": "2025-03-01T12:30:00.123Z",
				"url":       "https://example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.meta.Flatten()
			if len(got) != len(tt.expected) {
				t.Fatalf("Flatten() = %v, want %v", got, tt.expected)
			}
			for k, want := range tt.expected {
				if got[k] != want {
					t.Errorf("Flatten()[%q] = %v, want %v", k, got[k], want)
				}
			}
		})
	}
}

func TestMetadataWithExtraDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := Metadata{Extra: map[string]string{"a": "1"}}
	merged := base.WithExtra(map[string]string{"b": "2"})

	if _, ok := base.Extra["b"]; ok {
		t.Error("WithExtra() mutated the receiver")
	}
	if merged.Extra["a"] != "1" || merged.Extra["b"] != "2" {
		t.Errorf("WithExtra() = %v", merged.Extra)
	}
}

func TestChunkID(t *testing.T) {
	t.Parallel()

	if got := ChunkID("pdf_doc.pdf", 1700000000000, 12); got != "pdf_doc.pdf_chunk_1700000000000_12" {
		t.Errorf("ChunkID() = %q", got)
	}
}

func TestRetrievedChunkSourceLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata map[string]any
		expected string
	}{
		{"present", map[string]any{"source": "pdf"}, "pdf"},
		{"missing", map[string]any{}, "unknown"},
		{"nil metadata", nil, "unknown"},
		{"empty string", map[string]any{"source": ""}, "unknown"},
		{"non string", map[string]any{"source": 7}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := (RetrievedChunk{Metadata: tt.metadata}).SourceLabel(); got != tt.expected {
				t.Errorf("SourceLabel() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("ask", "question is required"), ErrValidation},
		{"extraction", Extraction("pdf", "no text layer", nil), ErrExtraction},
		{"fetch", Fetch("website", 404, nil), ErrFetch},
		{"not found", NotFound("query", "docs"), ErrNotFound},
		{"upstream", Upstream("embed", cause), ErrUpstream},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("query", "docs")), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestUpstreamKeepsClassifiedErrors(t *testing.T) {
	t.Parallel()

	nf := NotFound("query", "docs")
	if got := Upstream("query", nf); got != nf {
		t.Errorf("Upstream() rewrapped a classified error: %v", got)
	}
	if Upstream("query", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}

	cause := errors.New("boom")
	if !errors.Is(Upstream("embed", cause), cause) {
		t.Error("Upstream() should unwrap to its cause")
	}
}

func TestFetchMessage(t *testing.T) {
	t.Parallel()

	var re *Error
	if !errors.As(Fetch("website", 0, errors.New("dns")), &re) {
		t.Fatal("Fetch() is not *Error")
	}
	if re.Message != "website not found or unreachable" {
		t.Errorf("Message = %q", re.Message)
	}
	if !errors.As(Fetch("website", 503, nil), &re) || re.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", re.StatusCode)
	}
}
