// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/valyala/bytebufferpool"
)

// Runner executes external tools. The default implementation shells out
// through os/exec; tests substitute fakes.
type Runner interface {
	Output(name string, args ...string) ([]byte, error)
	Start(name string, args ...string) (Process, error)
}

// Process is a long-running child such as a log stream.
type Process interface {
	Stdout() io.Reader
	Pid() int
	Wait() error
	Kill() error
}

type execRunner struct {
	env Env
}

func NewRunner(env Env) Runner { return &execRunner{env: env} }

func (r *execRunner) ctx() context.Context { return r.env.context() }

func (r *execRunner) Output(name string, args ...string) ([]byte, error) {
	stdout := bytebufferpool.Get()
	defer bytebufferpool.Put(stdout)
	stderr := bytebufferpool.Get()
	defer bytebufferpool.Put(stderr)

	cmd := exec.CommandContext(r.ctx(), name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, newCommandLogWriter(r.env, name, args))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v failed: %w\n%s%s", name, args, err, stdout.String(), stderr.String())
	}
	out := make([]byte, stdout.Len())
	copy(out, stdout.B)
	return out, nil
}

func (r *execRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(r.ctx(), name, args...)
	cmd.Stderr = newCommandLogWriter(r.env, name, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s start: %w", name, err)
	}
	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }
func (p *execProcess) Kill() error       { return p.cmd.Process.Kill() }
