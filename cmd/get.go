package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
	"github.com/silicakes/deluge-extensions-sub001/pkg/progress"

	"github.com/spf13/cobra"
)

var getOutput string

var getCmd = &cobra.Command{
	Use:   "get <remote-path> [local-path]",
	Short: "Download a file from the device",
	Example: `  # Download a song into the current directory
  delctl get /SONGS/SONG042.XML

  # Download to an explicit local path
  delctl get /SAMPLES/kick.wav /tmp/kick.wav

  # Write to stdout
  delctl get /SONGS/SONG042.XML -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote := args[0]
		local := getOutput
		if len(args) == 2 {
			local = args[1]
		}
		if local == "" {
			local = filepath.Base(remote)
		}

		return withService(func(ctx context.Context, svc *fs.Service) error {
			var bar *progress.TransferBar
			opts := fs.TransferOptions{
				Progress: func(done, total int64) {
					if local == "-" {
						return
					}
					if bar == nil {
						bar = progress.NewTransferBar(total, "Downloading")
					}
					bar.Update(done)
				},
			}
			data, err := svc.ReadFile(ctx, remote, opts)
			if err != nil {
				return err
			}
			if bar != nil {
				bar.Finish()
			}

			if local == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(local, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", local, err)
			}
			fmt.Printf("Downloaded %s -> %s (%d bytes)\n", remote, local, len(data))
			return nil
		})
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "Local destination path ('-' for stdout)")
}
