package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calque-ai/docqa/pkg/rag"
)

func TestSourceKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source  string
		want    rag.SourceKind
		wantErr bool
	}{
		{"-", rag.SourceText, false},
		{"https://example.com/docs", rag.SourceWebsite, false},
		{"http://localhost:8080/", rag.SourceWebsite, false},
		{"./report.pdf", rag.SourcePDF, false},
		{"NOTES.TXT", rag.SourceTXT, false},
		{"slides.pptx", "", true},
		{"ftp://example.com/file.txt", rag.SourceTXT, false},
		{"README", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()
			got, err := sourceKind(tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sourceKind(%q) error = %v, wantErr %v", tt.source, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("sourceKind(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestStageFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("contents"), 0o600); err != nil {
		t.Fatal(err)
	}

	file, err := stageFile(path)
	if err != nil {
		t.Fatalf("stageFile() error = %v", err)
	}
	defer func() { _ = os.Remove(file.Path) }()

	if file.Filename != "doc.txt" {
		t.Errorf("Filename = %q, want doc.txt", file.Filename)
	}
	if file.Path == path || filepath.Ext(file.Path) != ".txt" {
		t.Errorf("Path = %q", file.Path)
	}
	data, err := os.ReadFile(file.Path)
	if err != nil || string(data) != "contents" {
		t.Errorf("staged contents = %q, %v", data, err)
	}

	if _, err := stageFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("stageFile(missing) error = nil")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"日本語のテキスト", 5, "日本..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
