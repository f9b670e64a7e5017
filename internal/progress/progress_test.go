package progress

import (
	"context"
	"testing"
)

func TestRecorder_PhasesAndKinds(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}

	Phase(ctx, rec, PhaseConnecting, "")
	Info(ctx, rec, "hello")
	rec.Report(ctx, Event{Kind: KindInstance, Instance: "WebRole_IN_0", Status: "Busy"})
	Phase(ctx, rec, PhaseUploading, "")

	phases := rec.Phases()
	if len(phases) != 2 || phases[0] != PhaseConnecting || phases[1] != PhaseUploading {
		t.Errorf("Phases = %v", phases)
	}
	if got := len(rec.Of(KindInstance)); got != 1 {
		t.Errorf("instance events = %d, want 1", got)
	}
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	r := Multi(a, nil, b)
	Warn(context.Background(), r, "careful")

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("a=%d b=%d, want 1 each", len(a.Events()), len(b.Events()))
	}
	if a.Events()[0].Kind != KindWarning {
		t.Errorf("kind = %q", a.Events()[0].Kind)
	}
}

func TestNilReporterIsIgnored(t *testing.T) {
	Phase(context.Background(), nil, PhaseConnecting, "")
	Info(context.Background(), nil, "x")
	TFLog.Report(context.Background(), Event{Kind: KindPhase, Phase: PhaseComplete})
}
