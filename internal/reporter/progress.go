package reporter

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressOptions controls how often encoding progress is delivered.
type ProgressOptions struct {
	// MinInterval is the minimum time between two delivered updates.
	MinInterval time.Duration
	// MinDelta is the minimum percentage increase between two delivered updates.
	MinDelta float64
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Progress converts frame indices into throttled, non-decreasing percentage
// updates. Delivery happens on a separate goroutine so Update never blocks
// the caller on a slow reporter; when the reporter falls behind, only the
// newest pending value is kept.
type Progress struct {
	rep   Reporter
	total uint64
	opts  ProgressOptions

	mu        sync.Mutex
	last      float64
	lastAt    time.Time
	startedAt time.Time
	closed    bool

	suppressed atomic.Bool
	pending    chan ProgressSnapshot
	done       chan struct{}
	closeOnce  sync.Once
}

// NewProgress starts a progress tracker for totalFrames frames. rep may be nil.
func NewProgress(rep Reporter, totalFrames uint64, opts ProgressOptions) *Progress {
	if rep == nil {
		rep = NullReporter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Progress{
		rep:       rep,
		total:     totalFrames,
		opts:      opts,
		last:      -1,
		startedAt: opts.Now(),
		pending:   make(chan ProgressSnapshot, 1),
		done:      make(chan struct{}),
	}
	go p.deliver()
	return p
}

// TotalFrames returns the number of frames a window of durationSecs seconds
// produces at fps frames per second.
func TotalFrames(durationSecs, fps float64) uint64 {
	if durationSecs <= 0 || fps <= 0 || math.IsNaN(durationSecs) || math.IsNaN(fps) {
		return 0
	}
	return uint64(math.Ceil(durationSecs*fps - 1e-9))
}

// Percent returns frameIndex as a percentage of total, capped at 100.
func Percent(frameIndex, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return math.Min(100, float64(frameIndex)/float64(total)*100)
}

// Total returns the expected frame count.
func (p *Progress) Total() uint64 {
	return p.total
}

// Update records that frameIndex frames have been written.
func (p *Progress) Update(frameIndex uint64) {
	p.offer(frameIndex, Percent(frameIndex, p.total), false)
}

// Complete delivers a final 100 percent update.
func (p *Progress) Complete() {
	p.offer(p.total, 100, true)
}

// RequestCancel stops all further delivery, including any pending update.
func (p *Progress) RequestCancel() {
	p.suppressed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case <-p.pending:
	default:
	}
}

// Last returns the most recently accepted percentage, or -1 before the first.
func (p *Progress) Last() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Close stops the delivery goroutine after flushing the pending update.
func (p *Progress) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.pending)
		p.mu.Unlock()
	})
	<-p.done
}

func (p *Progress) offer(frameIndex uint64, percent float64, force bool) {
	if p.suppressed.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || percent <= p.last {
		return
	}

	now := p.opts.Now()
	if !force && percent < 100 && p.last >= 0 {
		if percent-p.last < p.opts.MinDelta || now.Sub(p.lastAt) < p.opts.MinInterval {
			return
		}
	}

	p.last = percent
	p.lastAt = now

	snap := ProgressSnapshot{
		CurrentFrame: frameIndex,
		TotalFrames:  p.total,
		Percent:      float32(percent),
	}
	if elapsed := now.Sub(p.startedAt).Seconds(); elapsed > 0 && frameIndex > 0 {
		fps := float64(frameIndex) / elapsed
		snap.FPS = float32(fps)
		if p.total > frameIndex {
			snap.ETA = time.Duration(float64(p.total-frameIndex) / fps * float64(time.Second))
		}
	}

	// Only offer sends on pending and it holds mu, so after the drain the
	// send below has room.
	select {
	case p.pending <- snap:
	default:
		select {
		case <-p.pending:
		default:
		}
		p.pending <- snap
	}
}

func (p *Progress) deliver() {
	defer close(p.done)
	for snap := range p.pending {
		if p.suppressed.Load() {
			continue
		}
		p.rep.EncodingProgress(snap)
	}
}

// ProgressFunc is a Reporter that forwards encoding progress to a function
// and ignores every other event.
type ProgressFunc struct {
	NullReporter
	fn func(ProgressSnapshot)
}

// NewProgressFunc wraps fn as a Reporter.
func NewProgressFunc(fn func(ProgressSnapshot)) *ProgressFunc {
	return &ProgressFunc{fn: fn}
}

// EncodingProgress forwards the snapshot.
func (f *ProgressFunc) EncodingProgress(snap ProgressSnapshot) {
	if f.fn != nil {
		f.fn(snap)
	}
}
