package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	s, err := config.Load(config.StateWithEnv(nil))
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, s.StartServer, qt.IsFalse)
	qt.Check(t, s.Address(), qt.Equals, "127.0.0.1:50054")
	qt.Check(t, s.EngineConfig, qt.Equals, config.BuildRelease)
	qt.Check(t, s.Docker, qt.IsNil)
}

func TestLoad(t *testing.T) {
	s, err := config.Load(config.StateWithEnv(map[string]string{
		config.EnvStartServer:  "true",
		config.EnvServerIP:     "::1",
		config.EnvServerPort:   "6000",
		config.EnvEngineConfig: "debug",
		config.EnvDockerConfig: `{"image": "engine:24.1", "mounted_path": "/data", "args": ["-v"]}`,
	}))
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, s.StartServer, qt.IsTrue)
	qt.Check(t, s.Address(), qt.Equals, "[::1]:6000")
	qt.Check(t, s.EngineConfig, qt.Equals, config.BuildDebug)
	qt.Check(t, s.Docker, qt.DeepEquals, &config.DockerConfig{
		Image:       "engine:24.1",
		MountedPath: "/data",
		Port:        6000,
		Args:        []string{"-v"},
	})
}

func TestLoadRejects(t *testing.T) {
	for key, value := range map[string]string{
		config.EnvStartServer:  "maybe",
		config.EnvServerIP:     "localhost:1",
		config.EnvServerPort:   "70000",
		config.EnvEngineConfig: "fast",
		config.EnvDockerConfig: `{"image": ""}`,
	} {
		_, err := config.Load(config.StateWithEnv(map[string]string{key: value}))
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeConfig), qt.IsTrue, qt.Commentf("%s=%s", key, value))
	}
	_, err := config.Load(config.StateWithEnv(map[string]string{config.EnvDockerConfig: `{"image": "x", "ports": 1}`}))
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeConfig), qt.IsTrue)
}

func TestEngineBinary(t *testing.T) {
	_, err := config.EngineBinary(config.Settings{})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeConfig), qt.IsTrue)

	root := t.TempDir()
	qt.Assert(t, os.MkdirAll(filepath.Join(root, "bin"), 0755), qt.IsNil)
	bin := filepath.Join(root, "bin", "pinflow-engine-debug")
	qt.Assert(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0644), qt.IsNil)

	s := config.Settings{EnginePath: root, EngineConfig: config.BuildDebug}
	_, err = config.EngineBinary(s)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeIo), qt.IsTrue)

	qt.Assert(t, os.Chmod(bin, 0755), qt.IsNil)
	got, err := config.EngineBinary(s)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got, qt.Equals, bin)

	_, err = config.EngineLibrary(s)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeIo), qt.IsTrue)
}

func TestNewStateIsACopy(t *testing.T) {
	a, err := config.NewState()
	qt.Assert(t, err, qt.IsNil)
	a.Env["PINFLOW_EXTRA"] = "1"
	b, err := config.NewState()
	qt.Assert(t, err, qt.IsNil)
	_, ok := b.Env["PINFLOW_EXTRA"]
	qt.Check(t, ok, qt.IsFalse)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	qt.Assert(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# engine next door\nPINFLOW_SERVER_IP=10.0.0.7\nPINFLOW_SERVER_PORT=6000\nHOME=/nowhere\n"), 0644), qt.IsNil)

	state := config.StateWithEnv(map[string]string{config.EnvServerPort: "7000"})
	state.WorkingDirectory = dir
	state, err := config.WithEnvFile(state, ".env")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, state.Env, qt.DeepEquals, map[string]string{
		config.EnvServerIP:   "10.0.0.7",
		config.EnvServerPort: "7000",
	})
	s, err := config.Load(state)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, s.Address(), qt.Equals, "10.0.0.7:7000")

	_, err = config.WithEnvFile(state, "missing.env")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeConfig), qt.IsTrue)
}
