package cmd

import (
	"context"
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"

	"github.com/spf13/cobra"
)

var sessionTag string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and control the device session",
}

var sessionOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a session and print its parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *fs.Service) error {
			sess, err := svc.OpenSession(ctx, sessionTag)
			if err != nil {
				return err
			}
			writer := NewOutputWriter(outputFormat)
			if writer.IsStructured() {
				return writer.Write(map[string]any{
					"sid":    sess.SID,
					"midMin": sess.MidMin,
					"midMax": sess.MidMax,
					"tag":    sess.Tag,
				})
			}
			fmt.Printf("session %d open (tag %s, message ids %d..%d)\n", sess.SID, sess.Tag, sess.MidMin, sess.MidMax)
			return nil
		})
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *fs.Service) error {
			// withService opens lazily, so force one open first: the
			// point of this command is the explicit close exchange.
			if _, err := svc.OpenSession(ctx, sessionTag); err != nil {
				return err
			}
			if err := svc.CloseSession(ctx); err != nil {
				return err
			}
			fmt.Println("session closed")
			return nil
		})
	},
}

func init() {
	sessionCmd.AddCommand(sessionOpenCmd, sessionCloseCmd)
	sessionCmd.PersistentFlags().StringVar(&sessionTag, "tag", "", "Session tag to announce to the device")
}
