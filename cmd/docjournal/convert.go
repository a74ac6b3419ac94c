package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docjournal/internal/config"
	"github.com/dgallion1/docjournal/internal/convert"
	"github.com/dgallion1/docjournal/internal/sink"
	"github.com/dgallion1/docjournal/internal/source"
	"github.com/dgallion1/docjournal/internal/structure"
)

var (
	convModID    string
	convTitle    string
	convOut      string
	convTOCTitle string
	convPolicy   string
	convPrint    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a document into journal entries",
	Long: `Convert a document into journal entries and write them out.

Entries are written to --out (or OUTPUT_DIR) as a module directory and
published to PUBLISH_URL when it is set. With --print the entries are
also written to stdout as a JSON array.

Examples:
  docjournal convert rules.md --mod-id my-rules --out ./modules
  docjournal convert book.pdf --mod-id book --title "The Book" --print
  docjournal convert bundle.json --mod-id b --policy clamp`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if convOut != "" {
			cfg.OutputDir = convOut
		}

		res, err := convertFile(log, cfg, args[0])
		if err != nil {
			return err
		}

		snk := sink.New(sink.Settings{
			OutputDir:     cfg.OutputDir,
			PublishURL:    cfg.PublishURL,
			PublishAPIKey: cfg.PublishAPIKey,
			Version:       version,
		})
		if snk != nil {
			pub := sink.Publication{ModID: convModID, Title: res.IR.Title, Entries: res.All()}
			if err := snk.Publish(cmd.Context(), pub); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			if cfg.OutputDir != "" {
				log.Info("module written", "dir", filepath.Join(cfg.OutputDir, convModID))
			}
		} else if !convPrint {
			log.Warn("nothing written: pass --out, set OUTPUT_DIR or PUBLISH_URL, or use --print")
		}

		if convPrint {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.All()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addDocumentFlags(convertCmd)
	convertCmd.Flags().StringVar(&convOut, "out", "", "output root; the module is written to <out>/<mod-id>")
	convertCmd.Flags().BoolVar(&convPrint, "print", false, "write the entries to stdout as JSON")
}

// addDocumentFlags registers the flags shared by commands that convert.
func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&convModID, "mod-id", "", "module id (required)")
	cmd.Flags().StringVar(&convTitle, "title", "", "document title (default: from the document)")
	cmd.Flags().StringVar(&convTOCTitle, "toc-title", "", "table of contents title (default: TOC_TITLE)")
	cmd.Flags().StringVar(&convPolicy, "policy", "", "page order policy: reject or clamp (default: PAGE_ORDER_POLICY)")
}

// convertFile loads path with the source for its extension and converts it
// using cfg overridden by the command line flags.
func convertFile(log *slog.Logger, cfg config.Config, path string) (*convert.Result, error) {
	if convModID == "" {
		return nil, convert.ErrMissingModID
	}

	opts := convert.Options{
		TOCTitle:  cfg.TOCTitle,
		Policy:    cfg.PageOrderPolicy,
		CacheSize: cfg.IDCacheSize,
	}
	if convTOCTitle != "" {
		opts.TOCTitle = convTOCTitle
	}
	if convPolicy != "" {
		policy, err := structure.ParsePolicy(convPolicy)
		if err != nil {
			return nil, err
		}
		opts.Policy = policy
	}

	src, err := source.ForFile(path, source.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := src.Load(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return convert.RunLogged(log.With("file", filepath.Base(path)), convert.Request{
		ModID:    convModID,
		Title:    convTitle,
		Document: doc,
		Options:  opts,
	})
}
