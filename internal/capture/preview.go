package capture

import (
	"context"
	"sync"
	"time"

	appLog "calmark/internal/log"
	"calmark/internal/mark"
	"calmark/internal/metrics"
	"calmark/internal/render"
)

// CaptureFunc takes one screenshot.
type CaptureFunc func(ctx context.Context, opts CaptureOptions) error

// Previewer re-captures the calendar page when a rebuild changes a date
// visible in the current month. At most one capture runs at a time; a
// request arriving meanwhile is remembered and served once the running
// capture ends.
type Previewer struct {
	opts      CaptureOptions
	weekStart string
	loc       *time.Location
	metrics   *metrics.Metrics
	capture   CaptureFunc
	now       func() time.Time

	ctx context.Context

	mu      sync.Mutex
	running bool
	pending bool
	idle    chan struct{} // closed when the running capture loop ends
}

// NewPreviewer builds a Previewer bound to ctx; captures stop once ctx is
// done. A nil capture uses CaptureCalendarPNG.
func NewPreviewer(ctx context.Context, opts CaptureOptions, weekStart string, loc *time.Location, m *metrics.Metrics, capture CaptureFunc) *Previewer {
	if capture == nil {
		capture = CaptureCalendarPNG
	}
	if loc == nil {
		loc = time.Local
	}
	return &Previewer{
		opts:      opts,
		weekStart: weekStart,
		loc:       loc,
		metrics:   m,
		capture:   capture,
		now:       time.Now,
		ctx:       ctx,
	}
}

// OnChange is a host listener.
func (p *Previewer) OnChange(changed []mark.Date) {
	today := mark.DateOf(p.now().In(p.loc))
	grid := render.Month(today.Year, today.Month, p.weekStart, today, nil)
	if !grid.Touches(changed) {
		appLog.Debug("preview unaffected by change", "changed", len(changed))
		return
	}
	p.Trigger()
}

// Trigger requests a capture regardless of which dates changed. It is a
// no-op once the Previewer's context is done.
func (p *Previewer) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return
	}
	if p.running {
		p.pending = true
		return
	}
	p.running = true
	p.idle = make(chan struct{})
	go p.loop(p.idle)
}

func (p *Previewer) loop(idle chan struct{}) {
	defer close(idle)
	for {
		if p.ctx.Err() != nil {
			p.mu.Lock()
			p.running, p.pending = false, false
			p.mu.Unlock()
			return
		}

		start := time.Now()
		err := p.capture(p.ctx, p.opts)
		p.metrics.Captured(err)
		if err != nil {
			appLog.Error("preview capture failed", err, "url", p.opts.URL)
		} else {
			appLog.Info("preview captured", "path", p.opts.OutputPath, "took", time.Since(start).Round(time.Millisecond))
		}

		p.mu.Lock()
		if !p.pending {
			p.running = false
			p.mu.Unlock()
			return
		}
		p.pending = false
		p.mu.Unlock()
	}
}

// Wait blocks until no capture is running.
func (p *Previewer) Wait() {
	p.mu.Lock()
	idle := p.idle
	running := p.running
	p.mu.Unlock()
	if running {
		<-idle
	}
}
