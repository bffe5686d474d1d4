package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/warptools/pinflow/pfapi"
)

const (
	DefaultServerIP   = "127.0.0.1"
	DefaultServerPort = 50054

	BuildRelease = "release"
	BuildDebug   = "debug"
)

// Settings is the client configuration derived from a State.
type Settings struct {
	StartServer  bool
	ServerIP     string
	ServerPort   int
	EnginePath   string
	EngineConfig string
	Docker       *DockerConfig
}

// DockerConfig describes an engine container.
// MountedPath is shared with the container at the same location so result paths stay valid.
type DockerConfig struct {
	Image       string   `json:"image"`
	MountedPath string   `json:"mounted_path"`
	Port        int      `json:"port"`
	Args        []string `json:"args"`
}

// Address is the host:port the client connects to.
func (s Settings) Address() string {
	return net.JoinHostPort(s.ServerIP, strconv.Itoa(s.ServerPort))
}

// Load parses the engine settings held in state.
//
// Errors:
//
//   - pinflow-error-config -- when a variable holds a value that cannot be used
func Load(state State) (Settings, error) {
	s := Settings{
		ServerIP:     DefaultServerIP,
		ServerPort:   DefaultServerPort,
		EnginePath:   state.Env[EnvEnginePath],
		EngineConfig: BuildRelease,
	}
	if v, ok := state.Env[EnvStartServer]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Settings{}, pfapi.ErrorConfig(EnvStartServer, v, "expected a boolean")
		}
		s.StartServer = b
	}
	if v, ok := state.Env[EnvServerIP]; ok && v != "" {
		if net.ParseIP(v) == nil {
			return Settings{}, pfapi.ErrorConfig(EnvServerIP, v, "expected an IP address")
		}
		s.ServerIP = v
	}
	if v, ok := state.Env[EnvServerPort]; ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Settings{}, pfapi.ErrorConfig(EnvServerPort, v, "expected a port number")
		}
		s.ServerPort = port
	}
	if v, ok := state.Env[EnvEngineConfig]; ok && v != "" {
		switch v {
		case BuildRelease, BuildDebug:
			s.EngineConfig = v
		default:
			return Settings{}, pfapi.ErrorConfig(EnvEngineConfig, v, `expected "release" or "debug"`)
		}
	}
	if v, ok := state.Env[EnvDockerConfig]; ok && v != "" {
		var dc DockerConfig
		dec := json.NewDecoder(strings.NewReader(v))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&dc); err != nil {
			return Settings{}, pfapi.ErrorConfig(EnvDockerConfig, v, err.Error())
		}
		if dc.Image == "" {
			return Settings{}, pfapi.ErrorConfig(EnvDockerConfig, v, "image is required")
		}
		if dc.Port == 0 {
			dc.Port = s.ServerPort
		}
		s.Docker = &dc
	}
	return s, nil
}

func (s Settings) suffix() string {
	if s.EngineConfig == BuildDebug {
		return "-debug"
	}
	return ""
}

// EngineBinary resolves the engine server executable below EnginePath.
//
// Errors:
//
//   - pinflow-error-config -- when EnginePath is unset
//   - pinflow-error-io -- when the binary is missing or not executable
func EngineBinary(s Settings) (string, error) {
	if s.EnginePath == "" {
		return "", pfapi.ErrorConfig(EnvEnginePath, "", "an engine installation is needed to start a server")
	}
	path := filepath.Join(s.EnginePath, "bin", "pinflow-engine"+s.suffix())
	if err := unix.Access(path, unix.X_OK); err != nil {
		return "", pfapi.ErrorIo("checking engine binary", path, err)
	}
	return path, nil
}

// EngineLibrary resolves the in-process engine library below EnginePath.
//
// Errors:
//
//   - pinflow-error-config -- when EnginePath is unset
//   - pinflow-error-io -- when the library is missing
func EngineLibrary(s Settings) (string, error) {
	if s.EnginePath == "" {
		return "", pfapi.ErrorConfig(EnvEnginePath, "", "an engine installation is needed to load the engine in-process")
	}
	path := filepath.Join(s.EnginePath, "lib", "libpinflow-engine"+s.suffix()+".so")
	if _, err := os.Stat(path); err != nil {
		return "", pfapi.ErrorIo("checking engine library", path, err)
	}
	return path, nil
}
