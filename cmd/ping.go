package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"

	"github.com/spf13/cobra"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Check that the device responds",
	Example: `  delctl ping
  delctl ping --count 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *fs.Service) error {
			for i := 0; i < pingCount; i++ {
				start := time.Now()
				if err := svc.Ping(ctx); err != nil {
					return err
				}
				mode := "synthstrom"
				if svc.Session().Transport().UsesDeveloperID() {
					mode = "developer"
				}
				fmt.Printf("pong in %s (%s id)\n", time.Since(start).Round(time.Millisecond), mode)
			}
			return nil
		})
	},
}

func init() {
	pingCmd.Flags().IntVar(&pingCount, "count", 1, "Number of pings to send")
}
