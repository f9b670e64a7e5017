package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/planformat"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

func newPublishCmd(opts *options) *cobra.Command {
	var (
		service        string
		subscription   string
		storageAccount string
		location       string
		affinityGroup  string
		slot           string
		label          string
		force          bool
		planOnly       bool
		save           bool
		timeout        time.Duration
		retain         int
	)

	cmd := &cobra.Command{
		Use:   "publish [path]",
		Short: "Package a service project and publish it to a deployment slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			// Only flags given on the command line become overrides, so an
			// explicit empty value is still rejected.
			flags := cmd.Flags()
			var ov settings.Overrides
			for name, dst := range map[string]**string{
				"service":         &ov.ServiceName,
				"subscription":    &ov.Subscription,
				"storage-account": &ov.StorageAccount,
				"location":        &ov.Location,
				"affinity-group":  &ov.AffinityGroup,
				"slot":            &ov.Slot,
				"label":           &ov.Label,
			} {
				if flags.Changed(name) {
					v, _ := flags.GetString(name)
					*dst = settings.String(v)
				}
			}

			w := cmd.OutOrStdout()
			orch, err := opts.orchestrator(w, retain)
			if err != nil {
				return err
			}

			if planOnly {
				plan, err := orch.Plan(cmd.Context(), path, ov)
				if err != nil {
					return err
				}
				fmt.Fprint(w, planformat.Format(plan))
				return nil
			}

			out, err := orch.PublishWith(cmd.Context(), path, ov, publish.Options{
				Force:   force,
				Timeout: timeout,
				Confirm: confirmFrom(cmd.InOrStdin(), w),
			})
			if err != nil {
				return err
			}
			if out.Aborted {
				fmt.Fprintln(w, noticeBox.Render("Publish aborted. Nothing was deployed."))
				return nil
			}
			if save {
				if err := settings.SaveDefaults(path, out.Settings); err != nil {
					return err
				}
			}

			lines := []string{
				keyValue("service", out.Settings.ServiceName),
				keyValue("slot", out.Settings.Slot),
				keyValue("deployment", out.Deployment.Name),
				keyValue("action", string(out.Action)),
				keyValue("status", statusDot(out.Deployment.Status)+" "+out.Deployment.Status),
				keyValue("package", out.PackageID),
				keyValue("url", out.URL),
			}
			fmt.Fprintln(w, successBox.Render(strings.Join(lines, "\n")))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&service, "service", "", "hosted service name (defaults to the project name)")
	f.StringVar(&subscription, "subscription", "", "subscription name or id")
	f.StringVar(&storageAccount, "storage-account", "", "storage account used for publishing")
	f.StringVar(&location, "location", "", "location of a new service")
	f.StringVar(&affinityGroup, "affinity-group", "", "affinity group of a new service")
	f.StringVar(&slot, "slot", "", "deployment slot, Production or Staging")
	f.StringVar(&label, "label", "", "deployment label")
	f.BoolVar(&force, "force", false, "publish even when the package has warnings")
	f.BoolVar(&planOnly, "plan", false, "show what would be done without changing anything")
	f.BoolVar(&save, "save", false, "store the resolved settings as project defaults")
	f.DurationVar(&timeout, "timeout", 30*time.Minute, "upper bound on the whole publish")
	f.IntVar(&retain, "retain", 5, "older packages to keep per service; 0 keeps all")
	cmd.MarkFlagsMutuallyExclusive("location", "affinity-group")

	return cmd
}

// confirmFrom asks on out and reads a y/N answer from in.
func confirmFrom(in io.Reader, out io.Writer) func(context.Context, string) bool {
	reader := bufio.NewReader(in)
	return func(_ context.Context, message string) bool {
		fmt.Fprintf(out, "%s [y/N] ", warningStyle.Render(message))
		line, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
