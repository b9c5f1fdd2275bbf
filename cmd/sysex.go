package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
	"github.com/silicakes/deluge-extensions-sub001/pkg/sysex"

	"github.com/spf13/cobra"
)

var (
	sysexWait time.Duration
	sysexCopy bool
)

var sysexCmd = &cobra.Command{
	Use:   "sysex <hex-bytes>...",
	Short: "Send a raw sysex frame (power users)",
	Long: `Send an arbitrary sysex frame, given as hex bytes with optional 0x
prefixes. The frame must start with F0 and end with F7. Replies arriving
within --wait are hex-dumped.`,
	Example: `  delctl sysex "F0 7D 03 00 01 F7"
  delctl sysex 0xF0 0x7D 0x00 0x00 0xF7 --wait 2s --copy`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hex := strings.Join(args, " ")
		return withService(func(ctx context.Context, svc *fs.Service) error {
			var mu sync.Mutex
			var replies []string
			unsubscribe := svc.Session().Transport().Subscribe(func(ev sysex.Event) {
				mu.Lock()
				replies = append(replies, hexDump(ev.Raw))
				mu.Unlock()
			})
			defer unsubscribe()

			if !svc.SendCustomSysex(hex) {
				return fmt.Errorf("invalid sysex string")
			}
			fmt.Println("sent")

			if sysexWait > 0 {
				select {
				case <-time.After(sysexWait):
				case <-ctx.Done():
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, r := range replies {
				fmt.Println(r)
			}
			if sysexCopy && len(replies) > 0 {
				if err := CopyToClipboard(strings.Join(replies, "\n")); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				fmt.Println("✓ Copied to clipboard!")
			}
			return nil
		})
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Tail display and debug traffic from the device",
	Long: `Print every sysex message the device emits until interrupted.
Display and debug frames are delivered unbuffered, so firmware debug
output shows up as it happens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *fs.Service) error {
			unsubscribe := svc.Session().Transport().Subscribe(func(ev sysex.Event) {
				label := "sysex"
				switch ev.Command {
				case sysex.CmdDisplay:
					label = "display"
				case sysex.CmdDebug:
					label = "debug"
				case sysex.CmdJSON:
					label = "json"
				}
				fmt.Printf("[%s mid=%d] %s\n", label, ev.MsgID, hexDump(ev.Raw))
			})
			defer unsubscribe()

			if err := svc.Ping(ctx); err != nil {
				return err
			}
			fmt.Println("monitoring; press Ctrl-C to stop")
			<-ctx.Done()
			return nil
		})
	},
}

func hexDump(data []byte) string {
	var b strings.Builder
	for i, by := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", by)
	}
	return b.String()
}

func init() {
	sysexCmd.Flags().DurationVar(&sysexWait, "wait", time.Second, "How long to collect replies")
	sysexCmd.Flags().BoolVar(&sysexCopy, "copy", false, "Copy the hex-dumped replies to the clipboard")
}
