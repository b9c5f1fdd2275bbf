package cmd

import (
	"context"
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"

	"github.com/spf13/cobra"
)

var mvNoUpdatePaths bool

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Move a file or directory on the device",
	Long: `Move an entry to a new location. By default the device also
rewrites references to the moved file inside its XML song and kit data;
--no-update-paths leaves those untouched.`,
	Example: `  delctl mv /SAMPLES/kick.wav /SAMPLES/DRUMS/kick.wav`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsDryRun() {
			PrintDryRun("would move %s to %s", args[0], args[1])
			return nil
		}
		return withService(func(ctx context.Context, svc *fs.Service) error {
			if err := svc.Move(ctx, args[0], args[1], !mvNoUpdatePaths); err != nil {
				return err
			}
			fmt.Printf("Moved %s -> %s\n", args[0], args[1])
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:     "rename <from> <to>",
	Short:   "Rename a file or directory on the device",
	Example: `  delctl rename /SONGS/SONG001.XML /SONGS/intro.XML`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsDryRun() {
			PrintDryRun("would rename %s to %s", args[0], args[1])
			return nil
		}
		return withService(func(ctx context.Context, svc *fs.Service) error {
			if err := svc.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed %s -> %s\n", args[0], args[1])
			return nil
		})
	},
}

var cpCmd = &cobra.Command{
	Use:     "cp <from> <to>",
	Short:   "Copy a file on the device",
	Example: `  delctl cp /SONGS/SONG001.XML /SONGS/SONG001_BACKUP.XML`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsDryRun() {
			PrintDryRun("would copy %s to %s", args[0], args[1])
			return nil
		}
		return withService(func(ctx context.Context, svc *fs.Service) error {
			if err := svc.Copy(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Copied %s -> %s\n", args[0], args[1])
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:     "mkdir <remote-path>",
	Short:   "Create a directory on the device",
	Example: `  delctl mkdir /SAMPLES/FIELD_RECORDINGS`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsDryRun() {
			PrintDryRun("would create directory %s", args[0])
			return nil
		}
		return withService(func(ctx context.Context, svc *fs.Service) error {
			if err := svc.Mkdir(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Created %s\n", args[0])
			return nil
		})
	},
}

func init() {
	mvCmd.Flags().BoolVar(&mvNoUpdatePaths, "no-update-paths", false, "Do not rewrite XML references to the moved file")
}
