package completions

import (
	"strings"

	"github.com/silicakes/deluge-extensions-sub001/pkg/cache"

	"github.com/spf13/cobra"
)

// Completer serves shell completions for remote paths from the local
// SQLite mirror. Completions never touch the device: a blocking MIDI
// exchange inside tab-complete would be miserable.
type Completer struct{}

func NewCompleter() *Completer {
	return &Completer{}
}

func (c *Completer) cachedPaths(prefix string, dirsOnly bool) []string {
	mgr, err := cache.NewManagerFromEnv()
	if err != nil {
		return nil
	}
	defer mgr.Close()

	paths, err := mgr.Paths(prefix, dirsOnly, 100)
	if err != nil {
		return nil
	}
	return paths
}

// CompleteRemotePaths completes any remote path argument.
func (c *Completer) CompleteRemotePaths(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return c.cachedPaths(toComplete, false), cobra.ShellCompDirectiveNoFileComp
}

// CompleteRemoteDirs completes directory destinations.
func (c *Completer) CompleteRemoteDirs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return c.cachedPaths(toComplete, true), cobra.ShellCompDirectiveNoFileComp
}

// CompleteGetArgs completes get's remote source, then falls back to
// local file completion for the destination.
func (c *Completer) CompleteGetArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return c.cachedPaths(toComplete, false), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveDefault
}

// CompletePutArgs completes put's local sources with file completion
// and its remote destination from the cache once a '/' is typed.
func (c *Completer) CompletePutArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if strings.HasPrefix(toComplete, "/") {
		return c.cachedPaths(toComplete, true), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveDefault
}

// CompleteFormats completes the --format flag.
func (c *Completer) CompleteFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
}

// CompleteLogLevels completes the --log-level flag.
func (c *Completer) CompleteLogLevels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
}

// RegisterCompletions wires flag completions onto the root command.
func RegisterCompletions(root *cobra.Command) {
	c := NewCompleter()
	_ = root.RegisterFlagCompletionFunc("format", c.CompleteFormats)
	_ = root.RegisterFlagCompletionFunc("log-level", c.CompleteLogLevels)
}
