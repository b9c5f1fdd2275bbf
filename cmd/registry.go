package cmd

import (
	"github.com/silicakes/deluge-extensions-sub001/pkg/completions"

	"github.com/spf13/cobra"
)

func RegisterCommands(root *cobra.Command) {
	root.AddCommand(versionCmd)

	root.AddCommand(lsCmd)
	root.AddCommand(getCmd)
	root.AddCommand(putCmd)
	root.AddCommand(rmCmd)
	root.AddCommand(mvCmd)
	root.AddCommand(renameCmd)
	root.AddCommand(cpCmd)
	root.AddCommand(mkdirCmd)
	root.AddCommand(pingCmd)
	root.AddCommand(sessionCmd)
	root.AddCommand(sysexCmd)
	root.AddCommand(monitorCmd)
	root.AddCommand(configCmd)

	completer := completions.NewCompleter()
	lsCmd.ValidArgsFunction = completer.CompleteRemoteDirs
	getCmd.ValidArgsFunction = completer.CompleteGetArgs
	putCmd.ValidArgsFunction = completer.CompletePutArgs
	rmCmd.ValidArgsFunction = completer.CompleteRemotePaths
	mvCmd.ValidArgsFunction = completer.CompleteRemotePaths
	renameCmd.ValidArgsFunction = completer.CompleteRemotePaths
	cpCmd.ValidArgsFunction = completer.CompleteRemotePaths
	mkdirCmd.ValidArgsFunction = completer.CompleteRemoteDirs
}
