package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// CommandBuilder builds yt-dlp commands with a fluent API.
type CommandBuilder struct {
	binary    string
	url       string
	format    string
	output    string
	cookieJar string
	extraArgs []string
}

// NewCommandBuilder creates a new yt-dlp command builder.
func NewCommandBuilder(binary string) *CommandBuilder {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &CommandBuilder{binary: binary}
}

// URL sets the video URL to download.
func (b *CommandBuilder) URL(url string) *CommandBuilder {
	b.url = url
	return b
}

// Format sets the yt-dlp format selector.
func (b *CommandBuilder) Format(format string) *CommandBuilder {
	b.format = format
	return b
}

// Output sets the output file path template.
func (b *CommandBuilder) Output(path string) *CommandBuilder {
	b.output = path
	return b
}

// CookieJar sets a Netscape cookie file passed to the downloader.
func (b *CommandBuilder) CookieJar(path string) *CommandBuilder {
	b.cookieJar = path
	return b
}

// Args adds arbitrary extra arguments.
func (b *CommandBuilder) Args(args ...string) *CommandBuilder {
	b.extraArgs = append(b.extraArgs, args...)
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
	}
	if b.format != "" {
		args = append(args, "-f", b.format)
	}
	if b.cookieJar != "" {
		args = append(args, "--cookies", b.cookieJar)
	}
	if b.output != "" {
		args = append(args, "-o", b.output)
	}
	args = append(args, b.extraArgs...)
	args = append(args, b.url)

	return &Command{
		Binary:      b.binary,
		Args:        args,
		lines:       make(chan string, 64),
		done:        make(chan struct{}),
		stderrLines: make([]string, 0, maxStderrLines),
	}
}

// maxStderrLines is how many recent stderr lines are kept for diagnostics.
const maxStderrLines = 100

// Command represents a yt-dlp invocation under supervision.
type Command struct {
	Binary string
	Args   []string

	mu      sync.RWMutex
	cmd     *exec.Cmd
	started time.Time
	monitor *ProcessMonitor

	lines    chan string
	pumpWG   sync.WaitGroup
	done     chan struct{}
	waitOnce sync.Once
	waitErr  error

	stderrMu    sync.RWMutex
	stderrLines []string
}

// Start launches the process. The process runs in its own process group
// so Abort can terminate it together with any children it spawns.
func (c *Command) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("command already started")
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("getting stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Binary, err)
	}

	c.cmd = cmd
	c.started = time.Now()
	c.monitor = NewProcessMonitor(cmd.Process.Pid)
	c.monitor.Start()

	c.pumpWG.Add(2)
	go c.pump(stdout, false)
	go c.pump(stderr, true)
	go func() {
		c.pumpWG.Wait()
		close(c.lines)
	}()

	return nil
}

// pump reads process output line by line into the merged line channel.
// Stderr lines are also kept in a bounded ring for diagnostics.
func (c *Command) pump(r io.Reader, isStderr bool) {
	defer c.pumpWG.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if isStderr {
			c.stderrMu.Lock()
			if len(c.stderrLines) >= maxStderrLines {
				c.stderrLines = c.stderrLines[1:]
			}
			c.stderrLines = append(c.stderrLines, line)
			c.stderrMu.Unlock()
		}

		c.lines <- line
	}
}

// Lines returns the merged stdout/stderr line stream. The channel is
// closed when the process stops producing output.
func (c *Command) Lines() <-chan string {
	return c.lines
}

// Wait waits for the process to exit and returns its final error.
// Safe to call multiple times.
func (c *Command) Wait() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil {
		return fmt.Errorf("command not started")
	}

	c.waitOnce.Do(func() {
		c.pumpWG.Wait()
		c.waitErr = cmd.Wait()
		close(c.done)
	})
	<-c.done
	c.stopMonitor()
	return c.waitErr
}

// Abort asks the process group to terminate with SIGTERM, waits up to
// grace for a clean exit, then sends SIGKILL. Aborting a process that
// already exited returns nil.
func (c *Command) Abort(grace time.Duration) error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pgid := -cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("signalling process group: %w", err)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(grace):
	}

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("killing process group: %w", err)
	}
	return nil
}

// StderrTail returns the recent stderr lines captured from the process.
func (c *Command) StderrTail() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// Duration returns how long the process has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// Stats returns current resource usage of the process, or nil if
// monitoring is not active.
func (c *Command) Stats() *ProcessStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.monitor == nil {
		return nil
	}
	stats := c.monitor.Stats()
	return &stats
}

func (c *Command) stopMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.Stop()
		c.monitor = nil
	}
}

// String returns the command as a string.
func (c *Command) String() string {
	s := c.Binary
	for _, arg := range c.Args {
		s += " " + arg
	}
	return s
}
