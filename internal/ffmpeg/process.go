package ffmpeg

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
)

// stderrTailSize bounds how much ffmpeg stderr is kept for error messages.
const stderrTailSize = 4096

// process is a started or startable ffmpeg child.
type process struct {
	name   string
	cmd    *exec.Cmd
	stderr *tailBuffer
	killed atomic.Bool
	stop   func() bool

	waitOnce sync.Once
	waitErr  error
}

func newProcess(binary string, args []string) *process {
	cmd := exec.Command(binary, args...)
	tail := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = tail
	logging.Debug("Prepared ffmpeg command", "binary", binary, "args", strings.Join(args, " "))
	return &process{name: binary, cmd: cmd, stderr: tail}
}

// start launches the process and kills it when ctx is done.
func (p *process) start(ctx context.Context) error {
	if err := p.cmd.Start(); err != nil {
		return errors.NewCommandStartError(p.name, err)
	}
	p.stop = context.AfterFunc(ctx, p.kill)
	return nil
}

// kill terminates the process. Safe to call more than once.
func (p *process) kill() {
	if !p.killed.CompareAndSwap(false, true) {
		return
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// started reports whether the process was launched.
func (p *process) started() bool {
	return p.cmd.Process != nil
}

// wait waits for exit once; later calls return the same result.
// A killed process reports a cancellation.
func (p *process) wait() error {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if p.stop != nil {
			p.stop()
		}
		switch {
		case p.killed.Load():
			p.waitErr = errors.NewCancelledError()
		case err != nil:
			p.waitErr = errors.WrapExecError(p.name, err, strings.TrimSpace(p.stderr.String()))
		}
	})
	return p.waitErr
}

// abort kills the process and reaps it in the background.
func (p *process) abort() {
	p.kill()
	if p.started() {
		go func() { _ = p.wait() }()
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

var _ io.Writer = (*tailBuffer)(nil)
