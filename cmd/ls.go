package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/silicakes/deluge-extensions-sub001/pkg/cache"
	"github.com/silicakes/deluge-extensions-sub001/pkg/filter"
	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
	"github.com/silicakes/deluge-extensions-sub001/pkg/progress"

	"github.com/spf13/cobra"
)

var (
	lsContains  string
	lsRegex     string
	lsFuzzy     string
	lsExt       string
	lsDirsOnly  bool
	lsFilesOnly bool
	lsForce     bool
	lsOffset    int
	lsLines     int
	lsCopy      bool
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory on the device",
	Long: `List a directory on the Deluge's SD card. By default the whole
directory is fetched page by page; --offset/--lines request a single
page instead. Fresh listings also refresh the local completion cache.`,
	Example: `  # List the card root
  delctl ls

  # List the synth presets, fuzzy-filtered
  delctl ls /SYNTHS --fuzzy bass

  # Only directories, as JSON
  delctl ls / --dirs --format json

  # One page of 32 entries starting at 64
  delctl ls /SAMPLES --offset 64 --lines 32`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		return withService(func(ctx context.Context, svc *fs.Service) error {
			var entries []fs.Entry
			var err error
			if lsLines > 0 {
				entries, err = svc.ListDirectory(ctx, path, lsOffset, lsLines, lsForce)
			} else {
				err = progress.WithSpinner("Listing "+path, func() error {
					entries, err = svc.ListDirectoryComplete(ctx, path, lsForce, nil)
					return err
				})
			}
			if err != nil {
				return err
			}

			if lsLines <= 0 {
				recordListing(path, entries)
			}

			ef := &filter.EntryFilter{
				NameContains: lsContains,
				NameRegex:    lsRegex,
				NameFuzzy:    lsFuzzy,
				Extension:    lsExt,
				DirsOnly:     lsDirsOnly,
				FilesOnly:    lsFilesOnly,
			}
			entries, err = ef.Apply(entries)
			if err != nil {
				return err
			}

			writer := NewOutputWriter(outputFormat)
			if writer.IsStructured() {
				if err := writer.Write(entries); err != nil {
					return err
				}
			} else {
				writer.PrintEntries(path, entries)
				fmt.Printf("%d entries\n", len(entries))
			}

			if lsCopy {
				paths := make([]string, 0, len(entries))
				for _, e := range entries {
					paths = append(paths, fs.JoinPath(path, e.Name))
				}
				if err := CopyToClipboard(strings.Join(paths, "\n")); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				fmt.Println("✓ Copied to clipboard!")
			}
			return nil
		})
	},
}

// recordListing mirrors a fresh complete listing into the completion
// cache. Best effort only.
func recordListing(dir string, entries []fs.Entry) {
	mgr, err := cache.NewManagerFromEnv()
	if err != nil {
		logger.Debug().Err(err).Msg("completion cache unavailable")
		return
	}
	defer mgr.Close()
	if err := mgr.RecordListing(dir, entries); err != nil {
		logger.Debug().Err(err).Msg("completion cache update failed")
	}
}

func init() {
	lsCmd.Flags().StringVar(&lsContains, "filter", "", "Keep entries whose name contains this text")
	lsCmd.Flags().StringVar(&lsRegex, "regex", "", "Keep entries whose name matches this regex")
	lsCmd.Flags().StringVar(&lsFuzzy, "fuzzy", "", "Keep entries fuzzy-matching this pattern")
	lsCmd.Flags().StringVar(&lsExt, "ext", "", "Keep files with this extension")
	lsCmd.Flags().BoolVar(&lsDirsOnly, "dirs", false, "Directories only")
	lsCmd.Flags().BoolVar(&lsFilesOnly, "files", false, "Files only")
	lsCmd.Flags().BoolVar(&lsForce, "force", false, "Ask the device to rescan instead of serving its cache")
	lsCmd.Flags().IntVar(&lsOffset, "offset", 0, "Page offset (single-page mode)")
	lsCmd.Flags().IntVar(&lsLines, "lines", 0, "Page size; set to fetch one page instead of everything")
	lsCmd.Flags().BoolVar(&lsCopy, "copy", false, "Copy the listed paths to the clipboard")
}
