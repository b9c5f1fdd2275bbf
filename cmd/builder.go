package cmd

import (
	"context"
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/cache"
	"github.com/silicakes/deluge-extensions-sub001/pkg/config"
	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"
	"github.com/silicakes/deluge-extensions-sub001/pkg/midiport"
	"github.com/silicakes/deluge-extensions-sub001/pkg/sysex"

	"github.com/spf13/cobra"
)

// withService assembles the full stack for one command invocation:
// config, MIDI port, transport, session manager, service. The session
// and the port are torn down when fn returns, whatever happened.
func withService(fn func(ctx context.Context, svc *fs.Service) error) error {
	ctx, cancel := GetContext()
	defer cancel()

	cfg, err := config.Load(profileFlag)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Midi.PortName = portFlag
	}

	tp := sysex.NewTransport(nil)
	tp.JSONTimeout = cfg.Protocol.JSONTimeout
	tp.BinaryTimeout = cfg.Protocol.BinaryTimeout
	tp.SetDeveloperID(cfg.Midi.DeveloperID)
	if cfg.Protocol.ReassemblyLimit < 0 {
		tp.Reassembler().Enabled = false
	} else {
		tp.Reassembler().Limit = cfg.Protocol.ReassemblyLimit
	}

	port, err := midiport.Open(cfg.Midi.PortName, tp.Feed)
	if err != nil {
		return fmt.Errorf("could not attach to the Deluge: %w", err)
	}
	defer port.Close()
	tp.SetPort(port)

	sm := sysex.NewSessionManager(tp, cfg.Midi.SessionTag)
	svc := fs.NewService(sm, cfg.Protocol)

	if mgr, err := cache.NewManagerFromEnv(); err == nil {
		defer mgr.Close()
		if err := mgr.Prune(); err != nil {
			logger.Debug().Err(err).Msg("completion cache prune failed")
		}
		svc.SetPathCache(mgr)
	} else {
		logger.Debug().Err(err).Msg("completion cache unavailable")
	}

	defer func() {
		if err := svc.CloseSession(context.WithoutCancel(ctx)); err != nil {
			logger.Debug().Err(err).Msg("session close on shutdown")
		}
	}()

	return fn(ctx, svc)
}

type CommandBuilder struct {
	cmd *cobra.Command
}

func NewCommand(name, short, long string) *CommandBuilder {
	return &CommandBuilder{
		cmd: &cobra.Command{
			Use:   name,
			Short: short,
			Long:  long,
		},
	}
}

func (b *CommandBuilder) WithExample(example string) *CommandBuilder {
	b.cmd.Example = example
	return b
}

// WithService installs a RunE that runs fn against a fully wired
// service.
func (b *CommandBuilder) WithService(fn func(ctx context.Context, svc *fs.Service, args []string) error) *CommandBuilder {
	b.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *fs.Service) error {
			return fn(ctx, svc, args)
		})
	}
	return b
}

func (b *CommandBuilder) WithExactArgs(n int) *CommandBuilder {
	b.cmd.Args = cobra.ExactArgs(n)
	return b
}

func (b *CommandBuilder) WithMinArgs(n int) *CommandBuilder {
	b.cmd.Args = func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("requires at least %d argument(s)", n)
		}
		return nil
	}
	return b
}

func (b *CommandBuilder) Build() *cobra.Command {
	return b.cmd
}
