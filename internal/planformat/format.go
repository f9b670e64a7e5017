// Package planformat renders what a publish would do, in the style of
// "terraform plan" output.
package planformat

import (
	"fmt"
	"strings"
)

// Action describes the kind of change a step makes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "no-op"
)

// Kinds of remote objects a publish touches.
const (
	KindStorageAccount = "storage account"
	KindHostedService  = "hosted service"
	KindDeployment     = "deployment"
	KindCertificate    = "certificate"
)

// Step is one remote change a publish would make.
type Step struct {
	Action Action
	Kind   string
	Name   string
	Detail string
}

// Plan is everything a dry-run publish found out.
type Plan struct {
	ServiceName    string
	Slot           string
	Subscription   string
	Location       string
	AffinityGroup  string
	StorageAccount string
	DeploymentName string
	Label          string
	Roles          int
	Steps          []Step
	Warnings       []string
}

// Format renders a Plan as a human-readable string suitable for a terminal
// or Terraform plan log output.
func Format(p *Plan) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("  # service %s (%s) will be published\n", p.ServiceName, p.Slot))
	b.WriteString(fmt.Sprintf("  # subscription:    %s\n", p.Subscription))
	if p.AffinityGroup != "" {
		b.WriteString(fmt.Sprintf("  # affinity_group:  %s\n", p.AffinityGroup))
	} else {
		b.WriteString(fmt.Sprintf("  # location:        %s\n", p.Location))
	}
	b.WriteString(fmt.Sprintf("  # storage_account: %s\n", p.StorageAccount))
	b.WriteString(fmt.Sprintf("  # deployment:      %s (label %q, %d role(s))\n", p.DeploymentName, p.Label, p.Roles))
	b.WriteString("\n")

	if len(p.Steps) > 0 {
		b.WriteString("  Steps:\n")
		for _, s := range p.Steps {
			b.WriteString(fmt.Sprintf("    %s %s %s", actionSymbol(s.Action), s.Kind, s.Name))
			if s.Detail != "" {
				b.WriteString(fmt.Sprintf("  (%s)", s.Detail))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	creates, updates := count(p.Steps)
	b.WriteString(fmt.Sprintf("  %d to create, %d to update.\n", creates, updates))

	if len(p.Warnings) > 0 {
		b.WriteString("\n  Warnings:\n")
		for _, w := range p.Warnings {
			b.WriteString("    ! " + w + "\n")
		}
	}
	return b.String()
}

// FormatSummary returns a single-line summary of the plan.
func FormatSummary(p *Plan) string {
	creates, updates := count(p.Steps)
	certs := 0
	for _, s := range p.Steps {
		if s.Kind == KindCertificate && s.Action == ActionCreate {
			certs++
		}
	}
	return fmt.Sprintf("%s/%s: %d to create, %d to update, %d certificate(s) to upload, %d warning(s)",
		p.ServiceName, p.Slot, creates, updates, certs, len(p.Warnings))
}

// DeploymentAction returns the action planned for the deployment, or
// ActionNoop when the plan has no deployment step.
func DeploymentAction(p *Plan) Action {
	for _, s := range p.Steps {
		if s.Kind == KindDeployment {
			return s.Action
		}
	}
	return ActionNoop
}

func count(steps []Step) (creates, updates int) {
	for _, s := range steps {
		switch s.Action {
		case ActionCreate:
			creates++
		case ActionUpdate:
			updates++
		}
	}
	return
}

func actionSymbol(a Action) string {
	switch a {
	case ActionCreate:
		return "+"
	case ActionUpdate:
		return "~"
	case ActionNoop:
		return " "
	default:
		return "?"
	}
}
