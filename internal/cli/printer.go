package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
)

// printer renders progress events to a terminal.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Report(_ context.Context, ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case progress.KindPhase:
		line := titleStyle.Render("▸ ") + phaseStyle.Render(ev.Phase)
		if ev.Message != "" {
			line += " " + dimStyle.Render(ev.Message)
		}
		fmt.Fprintln(p.w, line)
	case progress.KindInstance:
		fmt.Fprintf(p.w, "  %s %s/%s %s\n", statusDot(ev.Status), ev.Role, ev.Instance, dimStyle.Render(ev.Status))
	case progress.KindWarning:
		fmt.Fprintln(p.w, warningStyle.Render("! "+ev.Message))
	default:
		fmt.Fprintln(p.w, dimStyle.Render("  "+ev.Message))
	}
}
