// Package progress carries publish progress events from the orchestrator to
// whichever front end is listening.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Kind distinguishes phase markers from per-instance status changes.
type Kind string

const (
	KindPhase    Kind = "phase"
	KindInstance Kind = "instance"
	KindInfo     Kind = "info"
	KindWarning  Kind = "warning"
)

// Phases reported by a publish, in the order they normally occur.
const (
	PhaseResolving    = "resolving settings"
	PhaseStorage      = "verifying storage account"
	PhaseListeners    = "running publish listeners"
	PhasePackaging    = "building package"
	PhaseConnecting   = "connecting"
	PhaseCreating     = "creating service"
	PhaseUploading    = "uploading package"
	PhaseCertificates = "uploading certificates"
	PhaseDeploying    = "creating deployment"
	PhaseUpgrading    = "upgrading deployment"
	PhaseStarting     = "waiting for deployment to start"
	PhaseRoles        = "waiting for roles to become ready"
	PhaseComplete     = "publish complete"
)

// Event is a single progress notification.
type Event struct {
	Time     time.Time
	Kind     Kind
	Phase    string
	Message  string
	Role     string
	Instance string
	Status   string
}

// Reporter receives progress events. Implementations must not block for long.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev Event)

func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(context.Context, Event) {})

// Phase reports a phase marker.
func Phase(ctx context.Context, r Reporter, phase, message string) {
	if r == nil {
		return
	}
	r.Report(ctx, Event{Time: time.Now(), Kind: KindPhase, Phase: phase, Message: message})
}

// Info reports a free-form informational message.
func Info(ctx context.Context, r Reporter, message string) {
	if r == nil {
		return
	}
	r.Report(ctx, Event{Time: time.Now(), Kind: KindInfo, Message: message})
}

// Warn reports a warning that does not stop the publish on its own.
func Warn(ctx context.Context, r Reporter, message string) {
	if r == nil {
		return
	}
	r.Report(ctx, Event{Time: time.Now(), Kind: KindWarning, Message: message})
}

// Multi fans events out to several reporters in order.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(ctx context.Context, ev Event) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ctx, ev)
			}
		}
	})
}

// TFLog forwards events to terraform-plugin-log.
var TFLog Reporter = ReporterFunc(func(ctx context.Context, ev Event) {
	fields := map[string]interface{}{"kind": string(ev.Kind)}
	if ev.Phase != "" {
		fields["phase"] = ev.Phase
	}
	if ev.Instance != "" {
		fields["role"] = ev.Role
		fields["instance"] = ev.Instance
		fields["status"] = ev.Status
	}
	msg := ev.Message
	if msg == "" {
		msg = ev.Phase
	}
	switch ev.Kind {
	case KindWarning:
		tflog.Warn(ctx, msg, fields)
	case KindInstance:
		tflog.Debug(ctx, msg, fields)
	default:
		tflog.Info(ctx, msg, fields)
	}
})

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Phases returns the recorded phase names in order.
func (r *Recorder) Phases() []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Kind == KindPhase {
			out = append(out, ev.Phase)
		}
	}
	return out
}

// Of returns the recorded events of the given kind.
func (r *Recorder) Of(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
