package healthcheck_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/healthcheck"
)

func init() {
	color.NoColor = true
}

func status(t *testing.T, r healthcheck.Runner) (healthcheck.Status, string) {
	t.Helper()
	err := r.Run(context.Background())
	msg, ok := err.(serum.ErrorInterfaceWithMessage)
	qt.Assert(t, ok, qt.IsTrue, qt.Commentf("runner %s returned %#v", r, err))
	return healthcheck.StatusOf(err), msg.Message()
}

func installation(t *testing.T, mode os.FileMode) string {
	dir := t.TempDir()
	qt.Assert(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755), qt.IsNil)
	qt.Assert(t, os.WriteFile(filepath.Join(dir, "bin", "pinflow-engine"), []byte("#!/bin/sh\n"), mode), qt.IsNil)
	return dir
}

func TestConfigCheck(t *testing.T) {
	var s config.Settings
	st, msg := status(t, &healthcheck.ConfigCheck{
		State:    config.StateWithEnv(map[string]string{config.EnvServerPort: "6001"}),
		Settings: &s,
	})
	qt.Check(t, st, qt.Equals, healthcheck.StatusOkay)
	qt.Check(t, msg, qt.Equals, "server 127.0.0.1:6001, release build")
	qt.Check(t, s.ServerPort, qt.Equals, 6001)

	st, msg = status(t, &healthcheck.ConfigCheck{
		State:    config.StateWithEnv(map[string]string{config.EnvServerPort: "nope"}),
		Settings: &s,
	})
	qt.Check(t, st, qt.Equals, healthcheck.StatusFail)
	qt.Check(t, msg, qt.Contains, "invalid configuration")
	qt.Check(t, s.ServerPort, qt.Equals, 6001)
}

func TestBinaryCheck(t *testing.T) {
	st, _ := status(t, &healthcheck.BinaryCheck{Settings: &config.Settings{}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusAmbiguous)

	st, msg := status(t, &healthcheck.BinaryCheck{Settings: &config.Settings{Docker: &config.DockerConfig{Image: "engine:1"}}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusAmbiguous)
	qt.Check(t, msg, qt.Contains, "engine:1")

	dir := installation(t, 0o755)
	st, msg = status(t, &healthcheck.BinaryCheck{Settings: &config.Settings{EnginePath: dir}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusOkay)
	qt.Check(t, msg, qt.Equals, "path: "+filepath.Join(dir, "bin", "pinflow-engine"))

	st, _ = status(t, &healthcheck.BinaryCheck{Settings: &config.Settings{EnginePath: dir, EngineConfig: config.BuildDebug}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusFail)

	if os.Getuid() != 0 {
		dir = installation(t, 0o644)
		st, _ = status(t, &healthcheck.BinaryCheck{Settings: &config.Settings{EnginePath: dir}})
		qt.Check(t, st, qt.Equals, healthcheck.StatusFail)
	}
}

func TestLibraryCheck(t *testing.T) {
	dir := installation(t, 0o755)
	st, _ := status(t, &healthcheck.LibraryCheck{Settings: &config.Settings{EnginePath: dir}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusAmbiguous)

	qt.Assert(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755), qt.IsNil)
	lib := filepath.Join(dir, "lib", "libpinflow-engine.so")
	qt.Assert(t, os.WriteFile(lib, nil, 0o644), qt.IsNil)
	st, msg := status(t, &healthcheck.LibraryCheck{Settings: &config.Settings{EnginePath: dir}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusOkay)
	qt.Check(t, msg, qt.Equals, "path: "+lib)
}

func TestServerCheck(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	qt.Assert(t, err, qt.IsNil)
	port := l.Addr().(*net.TCPAddr).Port
	s := &config.Settings{ServerIP: "127.0.0.1", ServerPort: port}

	st, msg := status(t, &healthcheck.ServerCheck{Settings: s})
	qt.Check(t, st, qt.Equals, healthcheck.StatusOkay)
	qt.Check(t, msg, qt.Equals, "listening at 127.0.0.1:"+strconv.Itoa(port))

	l.Close()
	st, _ = status(t, &healthcheck.ServerCheck{Settings: s})
	qt.Check(t, st, qt.Equals, healthcheck.StatusFail)
	s.StartServer = true
	st, _ = status(t, &healthcheck.ServerCheck{Settings: s})
	qt.Check(t, st, qt.Equals, healthcheck.StatusAmbiguous)
}

func TestEngineCheck(t *testing.T) {
	for _, kind := range []string{enginetest.KindRemote, enginetest.KindNative} {
		t.Run(kind, func(t *testing.T) {
			closed := false
			open := func(ctx context.Context) (*engine.Engine, func(), error) {
				e, _ := enginetest.Open(t, kind, enginetest.Options{})
				return e, func() { closed = true; e.Close(ctx) }, nil
			}
			st, msg := status(t, &healthcheck.EngineCheck{Open: open})
			qt.Check(t, st, qt.Equals, healthcheck.StatusOkay)
			qt.Check(t, msg, qt.Matches, `reference 4\.1\.0, \d+ operators`)
			qt.Check(t, closed, qt.IsTrue)

			st, msg = status(t, &healthcheck.EngineCheck{Open: open, Minimum: pfapi.V(9, 0, 0)})
			qt.Check(t, st, qt.Equals, healthcheck.StatusFail)
			qt.Check(t, msg, qt.Equals, "reference speaks 4.1.0, need at least 9.0.0")
		})
	}

	st, msg := status(t, &healthcheck.EngineCheck{Open: func(context.Context) (*engine.Engine, func(), error) {
		return nil, nil, pfapi.ErrorTransport("dialing", net.ErrClosed)
	}})
	qt.Check(t, st, qt.Equals, healthcheck.StatusFail)
	qt.Check(t, msg, qt.Contains, "could not open engine")
}

type broken struct{}

func (broken) Run(context.Context) error { return nil }
func (broken) String() string            { return "Broken" }

func TestFprint(t *testing.T) {
	var s config.Settings
	hc := &healthcheck.HealthCheck{Runners: []healthcheck.Runner{
		&healthcheck.ConfigCheck{State: config.StateWithEnv(nil), Settings: &s},
		&healthcheck.BinaryCheck{Settings: &s},
		broken{},
	}}
	var buf bytes.Buffer
	err := hc.Fprint(&buf)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInternal), qt.IsTrue)

	qt.Assert(t, hc.Run(context.Background()), qt.IsNil)
	qt.Check(t, hc.Failed(), qt.IsTrue)
	qt.Assert(t, hc.Fprint(&buf), qt.IsNil)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	qt.Assert(t, lines, qt.HasLen, 3)
	qt.Check(t, lines[0], qt.Equals, " ✔  Configuration \tserver 127.0.0.1:50054, release build")
	qt.Check(t, lines[1], qt.Equals, " ?  Engine binary \t"+config.EnvEnginePath+" is not set")
	qt.Check(t, lines[2], qt.Matches, ` ✘  Broken       \trunner has invalid interface: .*`)
}
