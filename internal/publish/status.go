package publish

import (
	"context"
	"fmt"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/poller"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

// StatusManager reads and changes the run state of a deployment slot.
type StatusManager struct {
	Client servicemgmt.Client
	Poller *poller.Poller
}

// Status returns the current deployment in slot.
func (m *StatusManager) Status(ctx context.Context, service, slot string) (*servicemgmt.Deployment, error) {
	d, err := m.Client.GetDeploymentBySlot(ctx, service, slot)
	if err != nil {
		if servicemgmt.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrDeploymentNotFound, service, slot)
		}
		return nil, err
	}
	return d, nil
}

// Start moves the deployment in slot to Running.
func (m *StatusManager) Start(ctx context.Context, service, slot string) error {
	return m.SetStatus(ctx, service, slot, servicemgmt.DeploymentRunning)
}

// Stop moves the deployment in slot to Suspended.
func (m *StatusManager) Stop(ctx context.Context, service, slot string) error {
	return m.SetStatus(ctx, service, slot, servicemgmt.DeploymentSuspended)
}

// SetStatus requests a Running or Suspended status for the deployment in
// slot. It does not wait for the change; see WaitForState.
func (m *StatusManager) SetStatus(ctx context.Context, service, slot, status string) error {
	if status != servicemgmt.DeploymentRunning && status != servicemgmt.DeploymentSuspended {
		return fmt.Errorf("unsupported deployment status %q", status)
	}
	exists, err := serviceExists(ctx, m.Client, service)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}
	if _, err := m.Status(ctx, service, slot); err != nil {
		return err
	}
	if err := m.Client.UpdateDeploymentStatus(ctx, service, slot, status); err != nil {
		return fmt.Errorf("set %s/%s to %s: %w", service, slot, status, err)
	}
	return nil
}

// WaitForState polls until the deployment in slot reports status.
func (m *StatusManager) WaitForState(ctx context.Context, service, slot, status string) (*servicemgmt.Deployment, error) {
	p := m.Poller
	if p == nil {
		p = &poller.Poller{Reporter: progress.Discard}
	}
	return p.WaitForStatus(ctx, m.Client, service, slot, status)
}

// Remove deletes the deployment in slot. A slot that is already empty, or
// a service that no longer exists, counts as removed.
func (o *Orchestrator) Remove(ctx context.Context, subscription, service, slot string) error {
	sub, err := o.cfg.Settings.Subscription(subscription)
	if err != nil {
		return err
	}
	client, err := o.connect(ctx, sub)
	if err != nil {
		return err
	}
	err = client.DeleteDeployment(ctx, service, slot)
	if err != nil && !servicemgmt.IsNotFound(err) {
		return fmt.Errorf("delete deployment %s/%s: %w", service, slot, err)
	}
	progress.Info(ctx, o.cfg.Reporter, fmt.Sprintf("removed deployment %s/%s", service, slot))
	return nil
}

// StatusManager returns a StatusManager on the given subscription, polling
// at the orchestrator's interval.
func (o *Orchestrator) StatusManager(ctx context.Context, subscription string) (*StatusManager, error) {
	sub, err := o.cfg.Settings.Subscription(subscription)
	if err != nil {
		return nil, err
	}
	client, err := o.connect(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &StatusManager{Client: client, Poller: o.poller()}, nil
}
