package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

type slotFlags struct {
	subscription string
	slot         string
}

func (s *slotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.subscription, "subscription", "", "subscription name or id")
	cmd.Flags().StringVar(&s.slot, "slot", servicemgmt.SlotProduction, "deployment slot, Production or Staging")
}

func (s *slotFlags) manager(cmd *cobra.Command, opts *options) (*publish.StatusManager, string, error) {
	slot, err := settings.NormalizeSlot(s.slot)
	if err != nil {
		return nil, "", err
	}
	orch, err := opts.orchestrator(cmd.OutOrStdout(), 0)
	if err != nil {
		return nil, "", err
	}
	mgr, err := orch.StatusManager(cmd.Context(), s.subscription)
	if err != nil {
		return nil, "", err
	}
	return mgr, slot, nil
}

func newStatusCmd(opts *options) *cobra.Command {
	var sf slotFlags
	cmd := &cobra.Command{
		Use:   "status <service>",
		Short: "Show the deployment in a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			mgr, slot, err := sf.manager(cmd, opts)
			if err != nil {
				return err
			}
			d, err := mgr.Status(cmd.Context(), service, slot)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDeployment(service, slot, d))
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

// newSetStatusCmd builds the start and stop commands.
func newSetStatusCmd(opts *options, use, status string) *cobra.Command {
	var (
		sf   slotFlags
		wait bool
	)
	cmd := &cobra.Command{
		Use:   use + " <service>",
		Short: fmt.Sprintf("Set the deployment in a slot to %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			mgr, slot, err := sf.manager(cmd, opts)
			if err != nil {
				return err
			}
			if err := mgr.SetStatus(cmd.Context(), service, slot, status); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !wait {
				fmt.Fprintf(w, "%s %s/%s requested %s\n", statusDot(status), service, slot, status)
				return nil
			}
			d, err := mgr.WaitForState(cmd.Context(), service, slot, status)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, renderDeployment(service, slot, d))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", true, "wait until the deployment reports the new status")
	return cmd
}

func renderDeployment(service, slot string, d *servicemgmt.Deployment) string {
	url := d.URL
	if slot == servicemgmt.SlotProduction {
		url = publish.ServiceURL(service)
	}
	lines := []string{
		titleStyle.Render(service + " / " + slot),
		keyValue("deployment", d.Name),
		keyValue("status", statusDot(d.Status)+" "+d.Status),
		keyValue("label", d.Label),
		keyValue("url", url),
	}
	for _, ri := range d.RoleInstances {
		lines = append(lines, fmt.Sprintf("  %s %s/%s %s", statusDot(ri.InstanceStatus), ri.RoleName, ri.InstanceName, dimStyle.Render(ri.InstanceStatus)))
	}
	return strings.Join(lines, "\n")
}
