package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpy-labs/chirpy-push/internal/pushclient"
)

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair",
	Long:  `Generate a VAPID key pair for push.vapid_public_key and push.vapid_private_key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := pushclient.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "push:\n")
		fmt.Fprintf(out, "  vapid_public_key: %q\n", pub)
		fmt.Fprintf(out, "  vapid_private_key: %q\n", priv)
		return nil
	},
}
