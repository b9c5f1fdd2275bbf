package cmd

import (
	"context"
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <remote-path>",
	Short: "Delete a file or directory tree on the device",
	Long: `Delete a remote file, or a directory and everything under it.
Directory trees are removed deepest-first. A file the device already
lost counts as deleted.`,
	Example: `  delctl rm /SAMPLES/old_kick.wav
  delctl rm /SAMPLES/UNUSED --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		confirmed, err := ConfirmDestructive("delete "+path+" from the device", map[string]string{
			"path": path,
		})
		if err != nil {
			return err
		}
		if !confirmed {
			return nil
		}

		return withService(func(ctx context.Context, svc *fs.Service) error {
			if err := svc.Delete(ctx, path); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", path)
			return nil
		})
	},
}
