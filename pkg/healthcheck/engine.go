package healthcheck

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/serum-errors/go-serum"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/engine"
)

// ConfigCheck loads settings from State and stores them in Settings for the checks that follow.
type ConfigCheck struct {
	State    config.State
	Settings *config.Settings
}

func (c *ConfigCheck) String() string { return "Configuration" }

// Run loads the configuration.
// Errors:
//
//   - pinflow-error-healthcheck-run-okay -- when the environment parses
//   - pinflow-error-healthcheck-run-fail -- when a setting is malformed
func (c *ConfigCheck) Run(ctx context.Context) error {
	s, err := config.Load(c.State)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("invalid configuration: {{cause}}"),
			serum.WithDetail("cause", err.Error()),
		)
	}
	if c.Settings != nil {
		*c.Settings = s
	}
	where := s.Address()
	if s.Docker != nil {
		where = fmt.Sprintf("%s (docker image %s)", where, s.Docker.Image)
	}
	return serum.Errorf(CodeRunOkay, "server %s, %s build", where, s.EngineConfig)
}

func isSymlink(m fs.FileMode) bool {
	return m&fs.ModeSymlink == fs.ModeSymlink
}

func followLink(path string) string {
	fi, err := os.Lstat(path)
	if err != nil {
		return ""
	}
	for isSymlink(fi.Mode()) {
		path, err = os.Readlink(path)
		if err != nil {
			return ""
		}
		fi, err = os.Lstat(path)
		if err != nil {
			return ""
		}
	}
	return path
}

func describePath(path string) error {
	if fi, err := os.Lstat(path); err == nil && isSymlink(fi.Mode()) {
		return serum.Errorf(CodeRunOkay, "symlink: %q -> %q", path, followLink(path))
	}
	return serum.Errorf(CodeRunOkay, "path: %s", path)
}

// BinaryCheck looks for the engine server executable of the installation in Settings.
type BinaryCheck struct {
	Settings *config.Settings
}

func (c *BinaryCheck) String() string { return "Engine binary" }

// Run checks that the server executable exists and can be executed.
// Errors:
//
//   - pinflow-error-healthcheck-run-okay -- when the binary is found
//   - pinflow-error-healthcheck-run-ambiguous -- when no installation is configured, or docker is used instead
//   - pinflow-error-healthcheck-run-fail -- when the binary is missing or not executable
func (c *BinaryCheck) Run(ctx context.Context) error {
	s := *c.Settings
	if s.Docker != nil {
		return serum.Errorf(CodeRunAmbiguous, "servers start from docker image %s", s.Docker.Image)
	}
	if s.EnginePath == "" {
		return serum.Errorf(CodeRunAmbiguous, "%s is not set", config.EnvEnginePath)
	}
	path, err := config.EngineBinary(s)
	if err != nil {
		if pfapi.IsCode(err, pfapi.CodeIo) {
			return serum.Error(CodeRunFailure, serum.WithCause(err),
				serum.WithMessageTemplate("no usable engine binary: {{cause}}"),
				serum.WithDetail("cause", err.Error()),
			)
		}
		return serum.Error(CodeRunFailure, serum.WithCause(err))
	}
	if err := executionAccess(path); err != nil {
		return err
	}
	return describePath(path)
}

// LibraryCheck looks for the in-process engine library of the installation in Settings.
type LibraryCheck struct {
	Settings *config.Settings
}

func (c *LibraryCheck) String() string { return "Engine library" }

// Run checks that the shared library exists.
// Errors:
//
//   - pinflow-error-healthcheck-run-okay -- when the library is found
//   - pinflow-error-healthcheck-run-ambiguous -- when it is missing; only in-process use needs it
func (c *LibraryCheck) Run(ctx context.Context) error {
	s := *c.Settings
	if s.EnginePath == "" {
		return serum.Errorf(CodeRunAmbiguous, "%s is not set", config.EnvEnginePath)
	}
	path, err := config.EngineLibrary(s)
	if err != nil {
		return serum.Errorf(CodeRunAmbiguous, "in-process engine unavailable: %s", err)
	}
	return describePath(path)
}

// ServerCheck tries a TCP connection to the configured server address.
type ServerCheck struct {
	Settings *config.Settings
	Timeout  time.Duration // zero means one second
}

func (c *ServerCheck) String() string { return "Engine server" }

// Run dials the server.
// Errors:
//
//   - pinflow-error-healthcheck-run-okay -- when something listens at the address
//   - pinflow-error-healthcheck-run-ambiguous -- when nothing listens but pinflow would start a server
//   - pinflow-error-healthcheck-run-fail -- when nothing listens and starting a server is disabled
func (c *ServerCheck) Run(ctx context.Context) error {
	s := *c.Settings
	timeout := c.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	addr := s.Address()
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err == nil {
		conn.Close()
		return serum.Errorf(CodeRunOkay, "listening at %s", addr)
	}
	if s.StartServer {
		return serum.Errorf(CodeRunAmbiguous, "nothing at %s yet; a server will be started on demand", addr)
	}
	return serum.Error(CodeRunFailure, serum.WithCause(err),
		serum.WithMessageTemplate("nothing listening at {{addr}} and {{key}} is off"),
		serum.WithDetail("addr", addr),
		serum.WithDetail("key", config.EnvStartServer),
	)
}

// EngineCheck opens an engine and checks its protocol version.
type EngineCheck struct {
	// Open returns a live engine and a func releasing it.
	Open func(ctx context.Context) (*engine.Engine, func(), error)
	// Minimum defaults to engine.MinimumVersion.
	Minimum pfapi.Version
}

func (c *EngineCheck) String() string { return "Engine session" }

// Run opens the engine and reports what answered.
// Errors:
//
//   - pinflow-error-healthcheck-run-okay -- when the engine is new enough
//   - pinflow-error-healthcheck-run-fail -- when it cannot be opened or is too old
func (c *EngineCheck) Run(ctx context.Context) error {
	min := c.Minimum
	if min == (pfapi.Version{}) {
		min = engine.MinimumVersion
	}
	e, closer, err := c.Open(ctx)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("could not open engine: {{cause}}"),
			serum.WithDetail("cause", err.Error()),
		)
	}
	defer closer()
	v := e.Version()
	if !v.AtLeast(min) {
		return serum.Errorf(CodeRunFailure, "%s speaks %s, need at least %s", e.Name(), v, min)
	}
	names, err := e.Specs().Names(ctx)
	if err != nil {
		return serum.Error(CodeRunFailure, serum.WithCause(err),
			serum.WithMessageTemplate("listing operators failed: {{cause}}"),
			serum.WithDetail("cause", err.Error()),
		)
	}
	return serum.Errorf(CodeRunOkay, "%s %s, %d operators", e.Name(), v, len(names))
}
