package launcher_test

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	qt "github.com/frankban/quicktest"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/launcher"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

const helperEnv = "PINFLOW_LAUNCHER_TEST_ENGINE"

// TestMain doubles as the engine binary: the tests install the test executable
// as bin/pinflow-engine and launch it with helperEnv set.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "" {
		os.Exit(m.Run())
	}
	fs := flag.NewFlagSet("engine", flag.ExitOnError)
	addr := fs.String("address", "127.0.0.1", "")
	port := fs.Int("port", 0, "")
	fs.Parse(os.Args[1:])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := enginetest.ListenAndServe(ctx, net.JoinHostPort(*addr, strconv.Itoa(*port)), enginetest.Options{Name: "launched"}, nil)
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	qt.Assert(t, err, qt.IsNil)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func installation(t *testing.T) string {
	exe, err := os.Executable()
	qt.Assert(t, err, qt.IsNil)
	root := t.TempDir()
	qt.Assert(t, os.MkdirAll(filepath.Join(root, "bin"), 0755), qt.IsNil)
	qt.Assert(t, os.Symlink(exe, filepath.Join(root, "bin", "pinflow-engine")), qt.IsNil)
	return root
}

func TestCommand(t *testing.T) {
	ctx := context.Background()
	root := installation(t)
	cmd, err := launcher.Command(ctx, config.Settings{ServerIP: "127.0.0.1", ServerPort: 7000, EnginePath: root})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cmd.Args[1:], qt.DeepEquals, []string{"--address", "127.0.0.1", "--port", "7000"})

	_, err = launcher.Command(ctx, config.Settings{})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeConfig), qt.IsTrue)
}

func TestContainerSpec(t *testing.T) {
	s := config.Settings{ServerIP: "127.0.0.1", ServerPort: 7000}
	cfg, host, name := launcher.ContainerSpec(s, config.DockerConfig{
		Image: "engine:1", MountedPath: "/data", Port: 50054, Args: []string{"--debug"},
	})
	qt.Check(t, name, qt.Matches, `pinflow-[0-9a-f-]{36}`)
	qt.Check(t, cfg.Image, qt.Equals, "engine:1")
	qt.Check(t, []string(cfg.Cmd), qt.DeepEquals, []string{"--debug"})
	qt.Check(t, cfg.ExposedPorts, qt.HasLen, 1)
	qt.Check(t, host.Binds, qt.DeepEquals, []string{"/data:/data"})
	bindings := host.PortBindings["50054/tcp"]
	qt.Assert(t, bindings, qt.HasLen, 1)
	qt.Check(t, bindings[0].HostIP, qt.Equals, "127.0.0.1")
	qt.Check(t, bindings[0].HostPort, qt.Equals, "7000")

	_, host, _ = launcher.ContainerSpec(s, config.DockerConfig{Image: "engine:1", Port: 50054})
	qt.Check(t, host.Binds, qt.HasLen, 0)
}

func TestStartContainer(t *testing.T) {
	api := &fakeDocker{exited: make(chan struct{})}
	defer func(prev func() (launcher.ContainerAPI, error)) { launcher.DockerClient = prev }(launcher.DockerClient)
	launcher.DockerClient = func() (launcher.ContainerAPI, error) { return api, nil }

	ctx := context.Background()
	s := config.Settings{
		StartServer: true,
		ServerIP:    "127.0.0.1",
		ServerPort:  freePort(t),
		Docker:      &config.DockerConfig{Image: "engine:1", Port: 50054},
	}
	api.serve = func(ctx context.Context) error {
		return enginetest.ListenAndServe(ctx, s.Address(), enginetest.Options{Name: "contained"}, nil)
	}
	e, p, err := launcher.Connect(ctx, s, remote.Options{})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.Name(), qt.Equals, "contained")
	qt.Assert(t, e.Close(ctx), qt.IsNil)

	qt.Assert(t, p.Stop(ctx), qt.IsNil)
	qt.Check(t, p.Exited(), qt.IsTrue)
	qt.Check(t, api.calls, qt.DeepEquals, []string{"create engine:1", "start", "stop", "remove", "close"})
}

func TestStartContainerFailure(t *testing.T) {
	api := &fakeDocker{exited: make(chan struct{}), startErr: errors.New("no such image")}
	defer func(prev func() (launcher.ContainerAPI, error)) { launcher.DockerClient = prev }(launcher.DockerClient)
	launcher.DockerClient = func() (launcher.ContainerAPI, error) { return api, nil }

	_, err := launcher.Start(context.Background(), config.Settings{
		ServerIP: "127.0.0.1", ServerPort: freePort(t), Docker: &config.DockerConfig{Image: "engine:1", Port: 1},
	})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeIo), qt.IsTrue)
	qt.Check(t, api.calls, qt.DeepEquals, []string{"create engine:1", "start", "remove", "close"})
}

// fakeDocker runs serve in place of the container.
type fakeDocker struct {
	serve    func(context.Context) error
	startErr error

	mu     sync.Mutex
	calls  []string
	cancel context.CancelFunc
	exited chan struct{}
}

func (f *fakeDocker) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *specs.Platform, _ string) (container.CreateResponse, error) {
	f.record("create " + cfg.Image)
	return container.CreateResponse{ID: "c0ffee"}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string, _ container.StartOptions) error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	sctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		f.serve(sctx)
		close(f.exited)
	}()
	return nil
}

func (f *fakeDocker) ContainerWait(ctx context.Context, id string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	waitC := make(chan container.WaitResponse, 1)
	go func() {
		<-f.exited
		waitC <- container.WaitResponse{}
	}()
	return waitC, make(chan error)
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, id string, _ container.LogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDocker) ContainerStop(ctx context.Context, id string, _ container.StopOptions) error {
	f.record("stop")
	f.cancel()
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error {
	f.record("remove")
	return nil
}

func (f *fakeDocker) Close() error {
	f.record("close")
	return nil
}

func TestStartAndConnect(t *testing.T) {
	t.Setenv(helperEnv, "1")
	ctx := context.Background()
	s := config.Settings{
		StartServer: true,
		ServerIP:    "127.0.0.1",
		ServerPort:  freePort(t),
		EnginePath:  installation(t),
	}
	e, p, err := launcher.Connect(ctx, s, remote.Options{})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, p, qt.Not(qt.IsNil))
	defer p.Stop(ctx)
	qt.Check(t, e.Name(), qt.Equals, "launched")
	qt.Check(t, e.Version(), qt.Equals, enginetest.DefaultVersion)
	qt.Check(t, p.Addr(), qt.Equals, s.Address())

	names, err := e.Specs().Names(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, names, qt.Contains, "norm_fc")
	qt.Assert(t, e.Close(ctx), qt.IsNil)

	qt.Assert(t, p.Stop(ctx), qt.IsNil)
	qt.Check(t, p.Exited(), qt.IsTrue)
}

func TestConnectWithoutServer(t *testing.T) {
	_, p, err := launcher.Connect(context.Background(), config.Settings{ServerIP: "127.0.0.1", ServerPort: freePort(t)}, remote.Options{})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
	qt.Check(t, p, qt.IsNil)
}

func TestOpenInProcessNeedsLibrary(t *testing.T) {
	_, err := launcher.OpenInProcess(context.Background(), config.Settings{EnginePath: t.TempDir()})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeIo), qt.IsTrue)
}
