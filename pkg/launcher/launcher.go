// Package launcher starts a co-located engine and connects to engines as configured.
//
// Only the minimum of process management lives here: start an engine binary or
// container, wait for its port, and stop it again.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/transport/native"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

const LOG_TAG = "launcher"

// StartTimeout bounds how long Start waits for a new engine to accept connections.
var StartTimeout = 30 * time.Second

// Process is an engine started by Start: a child process or a docker container.
type Process struct {
	cmd       *exec.Cmd
	container *containerRun
	addr      string

	done    chan struct{}
	waitErr error
}

// Command builds, without running it, the command that starts the engine binary of s.
//
// Errors:
//
//   - see config.EngineBinary
func Command(ctx context.Context, s config.Settings) (*exec.Cmd, error) {
	bin, err := config.EngineBinary(s)
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, bin, "--address", s.ServerIP, "--port", strconv.Itoa(s.ServerPort)), nil
}

// Start launches an engine for s and waits until it accepts connections on s.Address.
// When s.Docker is set the engine runs in a container made through the docker API,
// otherwise the engine binary is started. The engine's output is logged.
//
// Errors:
//
//   - pinflow-error-io -- when the engine cannot be started
//   - pinflow-error-transport-fault -- when the engine exits or does not listen within StartTimeout
//   - see Command
func Start(ctx context.Context, s config.Settings) (*Process, error) {
	p := &Process{addr: s.Address(), done: make(chan struct{})}
	var err error
	if s.Docker != nil {
		err = p.startContainer(ctx, s)
	} else {
		err = p.startBinary(ctx, s)
	}
	if err != nil {
		return nil, err
	}
	if err := p.await(ctx); err != nil {
		p.Stop(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *Process) startBinary(ctx context.Context, s config.Settings) error {
	log := logging.Ctx(ctx)
	// The process outlives ctx; Stop ends it.
	cmd, err := Command(context.Background(), s)
	if err != nil {
		return err
	}
	cmd.Stdout = log.InfoWriter(LOG_TAG)
	cmd.Stderr = log.InfoWriter(LOG_TAG)
	if err := cmd.Start(); err != nil {
		return pfapi.ErrorIo("starting engine", cmd.Path, err)
	}
	p.cmd = cmd
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	log.Info(LOG_TAG, "started %s (pid %d), waiting for %s", cmd.Path, cmd.Process.Pid, p.addr)
	return nil
}

func (p *Process) await(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = StartTimeout
	var last error
	err := backoff.Retry(func() error {
		select {
		case <-p.done:
			return backoff.Permanent(fmt.Errorf("engine exited: %v", p.waitErr))
		default:
		}
		conn, err := net.DialTimeout("tcp", p.addr, 250*time.Millisecond)
		if err != nil {
			last = err
			return err
		}
		return conn.Close()
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if last != nil && !errors.Is(err, last) {
			err = fmt.Errorf("%w (last attempt: %v)", err, last)
		}
		return pfapi.ErrorTransport("waiting for engine on "+p.addr, err)
	}
	return nil
}

// Addr is the address the engine listens on.
func (p *Process) Addr() string { return p.addr }

// Exited reports whether the engine process has ended.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stop asks the engine to exit and kills it if it has not after a grace period.
// A container is removed once stopped.
//
// Errors:
//
//   - pinflow-error-io -- when the process cannot be signalled
func (p *Process) Stop(ctx context.Context) error {
	if c := p.container; c != nil {
		c.stop(ctx)
		c.remove(ctx)
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
		}
		logging.Ctx(ctx).Debug(LOG_TAG, "container %s stopped", c.name)
		return nil
	}
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return pfapi.ErrorIo("stopping engine", p.cmd.Path, err)
	}
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		p.cmd.Process.Kill()
		<-p.done
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "engine %s stopped", p.addr)
	return nil
}

// Connect opens the engine s points at, starting one first when s.StartServer is set.
// The returned Process is nil unless one was started; closing the engine does not stop it.
//
// Errors:
//
//   - see Start
//   - see remote.Dial
//   - see engine.Open
func Connect(ctx context.Context, s config.Settings, opts remote.Options, engineOpts ...engine.Option) (*engine.Engine, *Process, error) {
	var p *Process
	if s.StartServer {
		var err error
		if p, err = Start(ctx, s); err != nil {
			return nil, nil, err
		}
	}
	stop := func() {
		if p != nil {
			p.Stop(context.Background())
		}
	}
	c, err := remote.Dial(ctx, s.Address(), opts)
	if err != nil {
		stop()
		return nil, nil, err
	}
	e, err := engine.Open(ctx, c, engineOpts...)
	if err != nil {
		c.Close()
		stop()
		return nil, nil, err
	}
	return e, p, nil
}

// OpenInProcess loads the engine library of the installation s points at.
//
// Errors:
//
//   - see config.EngineLibrary
//   - see native.Open
//   - see engine.Open
func OpenInProcess(ctx context.Context, s config.Settings, engineOpts ...engine.Option) (*engine.Engine, error) {
	path, err := config.EngineLibrary(s)
	if err != nil {
		return nil, err
	}
	tr, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	e, err := engine.Open(ctx, tr, engineOpts...)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return e, nil
}
