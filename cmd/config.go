package cmd

import (
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/config"
	"github.com/silicakes/deluge-extensions-sub001/pkg/midiport"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage delctl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		cfg.Midi.PortName = midiport.DefaultPortName
		if err := config.Save(cfg); err != nil {
			return err
		}
		path, _ := config.GetConfigPath()
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(profileFlag)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the OS MIDI ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, outs := midiport.ListPorts()
		fmt.Println("Inputs:")
		for _, p := range ins {
			fmt.Printf("  %s\n", p)
		}
		fmt.Println("Outputs:")
		for _, p := range outs {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configPortsCmd)
}
