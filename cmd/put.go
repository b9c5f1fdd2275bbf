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

var (
	putOverwrite bool
	putSanitize  bool
	putParallel  int
)

var putCmd = &cobra.Command{
	Use:   "put <local-file>... <remote-dir-or-path>",
	Short: "Upload files to the device",
	Long: `Upload one or more local files. With a single source the last
argument may be a full remote path; with several sources it must be the
destination directory. Existing files are only replaced with
--overwrite. Invalid FAT names fail unless --sanitize rewrites them.`,
	Example: `  # Upload one sample under a new name
  delctl put kick.wav /SAMPLES/KICK2.WAV

  # Upload a batch into a directory
  delctl put *.wav /SAMPLES --overwrite`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := args[:len(args)-1]
		dest := args[len(args)-1]

		if IsDryRun() {
			for _, src := range sources {
				PrintDryRun("would upload %s to %s", src, dest)
			}
			return nil
		}

		return withService(func(ctx context.Context, svc *fs.Service) error {
			if len(sources) == 1 {
				return putSingle(ctx, svc, sources[0], dest)
			}
			return putBatch(ctx, svc, sources, dest)
		})
	},
}

func putSingle(ctx context.Context, svc *fs.Service, src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	// A destination that is an existing directory on the device means
	// "keep the local name".
	remote := dest
	if entry, err := svc.Stat(ctx, remote); err == nil && entry != nil && entry.IsDir() {
		remote = fs.JoinPath(remote, filepath.Base(src))
	}

	bar := progress.NewTransferBar(int64(len(data)), "Uploading")
	err = svc.WriteFile(ctx, remote, data, fs.TransferOptions{
		Overwrite: putOverwrite,
		Sanitize:  putSanitize,
		Progress:  func(done, total int64) { bar.Update(done) },
	})
	if err != nil {
		return err
	}
	bar.Finish()
	fmt.Printf("Uploaded %s -> %s (%d bytes)\n", src, remote, len(data))
	return nil
}

func putBatch(ctx context.Context, svc *fs.Service, sources []string, destDir string) error {
	files := make([]fs.UploadFile, 0, len(sources))
	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src, err)
		}
		files = append(files, fs.UploadFile{Name: filepath.Base(src), Data: data})
	}

	err := svc.UploadFiles(ctx, files, fs.UploadOptions{
		DestDir:       destDir,
		MaxConcurrent: putParallel,
		Overwrite:     putOverwrite,
		ForceSanitize: putSanitize,
		Progress: func(name string, done, total int64) {
			if done == total {
				fmt.Printf("  %s (%d bytes)\n", name, total)
			}
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d files to %s\n", len(files), destDir)
	return nil
}

func init() {
	putCmd.Flags().BoolVar(&putOverwrite, "overwrite", false, "Replace existing remote files")
	putCmd.Flags().BoolVar(&putSanitize, "sanitize", false, "Rewrite invalid FAT names instead of failing")
	putCmd.Flags().IntVar(&putParallel, "max-concurrent", 0, "Concurrent uploads in batch mode (default from config)")
}
