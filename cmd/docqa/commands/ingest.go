package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calque-ai/docqa/pkg/extract"
	"github.com/calque-ai/docqa/pkg/rag"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd(opts *globalOptions) *cobra.Command {
	var (
		metadata map[string]string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <collection> <source>",
		Short: "Embed a document into a collection",
		Long: `Embed a document into a collection.

The source is an http(s) URL, a path to a .pdf or .txt file, or "-" to read
raw text from stdin. The collection is created on first use.`,
		Example: `  docqa ingest handbook ./handbook.pdf
  docqa ingest handbook https://example.com/faq --meta team=support
  echo "Widgets are small devices." | docqa ingest notes -
  docqa ingest notes ./notes.txt --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, source := args[0], args[1]
			kind, err := sourceKind(source)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			var res *rag.EmbedResult
			switch kind {
			case rag.SourceWebsite:
				res, err = a.Service.EmbedWebsite(ctx, collection, source, metadata)
			case rag.SourceText:
				data, rerr := io.ReadAll(cmd.InOrStdin())
				if rerr != nil {
					return fmt.Errorf("reading stdin: %w", rerr)
				}
				res, err = a.Service.EmbedText(ctx, collection, string(data), metadata)
			default:
				file, cerr := stageFile(source)
				if cerr != nil {
					return cerr
				}
				if kind == rag.SourcePDF {
					res, err = a.Service.EmbedPDF(ctx, collection, file, metadata)
				} else {
					res, err = a.Service.EmbedTXT(ctx, collection, file, metadata)
				}
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d chunks embedded into %q (%d characters)\n",
				res.ChunksProcessed, collection, res.TotalCharacters)
			return nil
		},
	}

	cmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "Metadata attached to every chunk (key=value)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func sourceKind(source string) (rag.SourceKind, error) {
	if source == "-" {
		return rag.SourceText, nil
	}
	if extract.ValidURL(source) {
		return rag.SourceWebsite, nil
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".pdf":
		return rag.SourcePDF, nil
	case ".txt":
		return rag.SourceTXT, nil
	}
	return "", fmt.Errorf("unsupported source %q: expected an http(s) URL, a .pdf or .txt file, or -", source)
}

// stageFile copies path to a temporary file, which the service removes once
// it has been processed.
func stageFile(path string) (rag.FileSource, error) {
	src, err := os.Open(path)
	if err != nil {
		return rag.FileSource{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp("", "docqa-*"+filepath.Ext(path))
	if err != nil {
		return rag.FileSource{}, fmt.Errorf("staging %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return rag.FileSource{}, fmt.Errorf("staging %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return rag.FileSource{}, fmt.Errorf("staging %s: %w", path, err)
	}

	return rag.FileSource{Path: dst.Name(), Filename: filepath.Base(path)}, nil
}
