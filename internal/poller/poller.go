// Package poller waits for remote state to converge by polling at a fixed
// interval. Every wait is bounded by its context.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

const (
	// DefaultInterval separates deployment and instance polls.
	DefaultInterval = 10 * time.Second
	// CertificateInterval separates certificate visibility polls.
	CertificateInterval = 500 * time.Millisecond
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("timed out")

// ErrDeploymentNotFound is returned when the deployment being waited on
// disappears.
var ErrDeploymentNotFound = errors.New("deployment not found")

// TimeoutError reports a wait whose context deadline expired.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s", e.Operation)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Poller polls at a fixed interval with no backoff. The zero value polls at
// DefaultInterval and reports nothing.
type Poller struct {
	Interval time.Duration
	Reporter progress.Reporter
}

func (p *Poller) interval() time.Duration {
	if p == nil || p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p *Poller) reporter() progress.Reporter {
	if p == nil || p.Reporter == nil {
		return progress.Discard
	}
	return p.Reporter
}

// Until calls fetch until done accepts its result, sleeping the poller's
// interval between calls. A fetch error ends the wait. operation names the
// wait in timeout errors.
func Until[T any](ctx context.Context, p *Poller, operation string, fetch func(context.Context) (T, error), done func(T) bool) (T, error) {
	var zero T
	for {
		v, err := fetch(ctx)
		if err != nil {
			return zero, deadline(ctx, operation, err)
		}
		if done(v) {
			return v, nil
		}
		if err := Sleep(ctx, p.interval()); err != nil {
			return zero, deadline(ctx, operation, err)
		}
	}
}

// WaitUntil polls a deployment snapshot until pred holds and returns that
// snapshot.
func (p *Poller) WaitUntil(ctx context.Context, fetch func(context.Context) (*servicemgmt.Deployment, error), pred func(*servicemgmt.Deployment) bool) (*servicemgmt.Deployment, error) {
	return Until(ctx, p, "deployment state", fetch, pred)
}

// WaitForStatus polls the slot's deployment until its status is one of
// statuses.
func (p *Poller) WaitForStatus(ctx context.Context, client servicemgmt.Client, service, slot string, statuses ...string) (*servicemgmt.Deployment, error) {
	return p.WaitUntil(ctx, deploymentFetcher(client, service, slot), func(d *servicemgmt.Deployment) bool {
		for _, s := range statuses {
			if d.Status == s {
				return true
			}
		}
		return false
	})
}

// WaitForAllInstancesReady polls the slot's deployment until every role
// instance is Ready. Each instance's Creating, Busy and Ready transitions
// are reported once as they are first observed. A deployment with no
// instances is ready immediately.
func (p *Poller) WaitForAllInstancesReady(ctx context.Context, client servicemgmt.Client, service, slot string) (*servicemgmt.Deployment, error) {
	seen := make(map[string]string)
	rep := p.reporter()

	return Until(ctx, p, "role instances", deploymentFetcher(client, service, slot), func(d *servicemgmt.Deployment) bool {
		for _, ri := range d.RoleInstances {
			switch ri.InstanceStatus {
			case servicemgmt.InstanceCreating, servicemgmt.InstanceBusy, servicemgmt.InstanceReady:
			default:
				continue
			}
			if last, ok := seen[ri.InstanceName]; ok && last == ri.InstanceStatus {
				continue
			}
			seen[ri.InstanceName] = ri.InstanceStatus
			rep.Report(ctx, progress.Event{
				Time:     time.Now(),
				Kind:     progress.KindInstance,
				Phase:    progress.PhaseRoles,
				Message:  fmt.Sprintf("%s: %s", ri.InstanceName, ri.InstanceStatus),
				Role:     ri.RoleName,
				Instance: ri.InstanceName,
				Status:   ri.InstanceStatus,
			})
		}
		return d.AllInstancesReady()
	})
}

func deploymentFetcher(client servicemgmt.Client, service, slot string) func(context.Context) (*servicemgmt.Deployment, error) {
	return func(ctx context.Context) (*servicemgmt.Deployment, error) {
		d, err := client.GetDeploymentBySlot(ctx, service, slot)
		if servicemgmt.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrDeploymentNotFound, service, slot)
		}
		return d, err
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// deadline turns a deadline expiry into a *TimeoutError and passes every
// other error through.
func deadline(ctx context.Context, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation}
	}
	return err
}
