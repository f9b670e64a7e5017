package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLocationsCmd(opts *options) *cobra.Command {
	var subscription string
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List the locations a subscription can place services in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := opts.settings()
			if err != nil {
				return err
			}
			sub, err := subs.Subscription(subscription)
			if err != nil {
				return err
			}
			connector, err := opts.resolveConnector()
			if err != nil {
				return err
			}
			client, err := connector.Connect(cmd.Context(), sub)
			if err != nil {
				return err
			}
			locs, err := client.ListLocations(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, l := range locs {
				line := l.Name
				if i == 0 {
					line += " " + dimStyle.Render("(default)")
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subscription, "subscription", "", "subscription name or id")
	return cmd
}
