package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docjournal/internal/journal"
	"github.com/dgallion1/docjournal/internal/sink"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|module-dir>",
	Short: "Check a document or a written module for broken entries and links",
	Long: `Validate converts a document in memory and reports entry invariant
violations and table of contents links that do not resolve. Nothing is
written.

Given a module directory produced by convert, it re-reads module.json and
every journal file instead. --mod-id defaults to the directory name.

Exits non-zero when any issue is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		path := args[0]

		var issues []string
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			modID := convModID
			if modID == "" {
				modID = filepath.Base(filepath.Clean(path))
			}
			s := &sink.FileSink{Root: filepath.Dir(filepath.Clean(path))}
			if issues, err = s.Verify(modID); err != nil {
				return err
			}
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := convertFile(log, cfg, path)
			if err != nil {
				return err
			}
			for _, e := range res.All() {
				if err := journal.ValidateEntry(e); err != nil {
					issues = append(issues, err.Error())
				}
			}
			issues = append(issues, res.Issues...)
		}

		for _, issue := range issues {
			fmt.Fprintln(cmd.OutOrStdout(), issue)
		}
		if len(issues) > 0 {
			return fmt.Errorf("%d issue(s) found", len(issues))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	addDocumentFlags(validateCmd)
}
