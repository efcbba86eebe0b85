package execrunner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"time"

	"github.com/alessio/shellescape"

	"videograb/internal/core/ports"
)

// waitDelay bounds how long Wait lingers on pipes held open by grandchildren
// after the process itself has exited or been killed.
const waitDelay = 5 * time.Second

// ExecRunner implements ports.Runner on top of os/exec.
type ExecRunner struct {
	logger *log.Logger
}

// New creates a runner that logs every command line to logger.
func New(logger *log.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes cmd and captures stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, cmd ports.Command) (*ports.Result, error) {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	c := r.build(ctx, cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := &ports.Result{Stdout: stdout.String(), Stderr: stderr.String()}
	return finish(ctx, c, res, err)
}

// Stream executes cmd and hands each stdout line to onLine as it arrives.
func (r *ExecRunner) Stream(ctx context.Context, cmd ports.Command, onLine func(line string)) (*ports.Result, error) {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	c := r.build(ctx, cmd)
	var stderr bytes.Buffer
	c.Stderr = &stderr

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Printf("reading %s output: %v", cmd.Name, err)
		// keep the pipe empty so the child cannot block on a full buffer
		if _, err := io.Copy(io.Discard, stdout); err != nil {
			r.logger.Printf("draining %s output: %v", cmd.Name, err)
		}
	}

	err = c.Wait()
	res := &ports.Result{Stderr: stderr.String()}
	return finish(ctx, c, res, err)
}

func (r *ExecRunner) build(ctx context.Context, cmd ports.Command) *exec.Cmd {
	r.logger.Printf("Running: %s", shellescape.QuoteCommand(append([]string{cmd.Name}, cmd.Args...)))

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay
	return c
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// finish turns the Wait/Run error into the ports.Runner contract: exit codes
// go into the result, only start failures and timeouts are errors.
func finish(ctx context.Context, c *exec.Cmd, res *ports.Result, err error) (*ports.Result, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", c.Path, ports.ErrTimeout)
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) && c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	return res, err
}

// scanLines splits on '\n' and on bare '\r', since progress meters redraw
// the same line with carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' {
			return i + 1, data[:i], nil
		}
		if b == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// need one more byte to tell "\r" from "\r\n"
				return 0, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
