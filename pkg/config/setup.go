// Package config captures the process environment the client depends on.
//
// Environment variables and the working directory are read once into a global State.
// Callers take a copy with NewState and derive Settings from it with Load, so a
// running program never observes the environment changing underneath it.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/pinflow/pfapi"
)

type State struct {
	Env              map[string]string
	WorkingDirectory string
	TempDir          string
}

var (
	globalm sync.RWMutex
	global  State
)

// ReloadGlobalState reads the environment again.
// ReloadGlobalState halts on the first error.
//
// Errors:
//
//   - pinflow-error-config -- when a value cannot be loaded
func ReloadGlobalState() error {
	globalm.Lock()
	defer globalm.Unlock()
	global.Env = make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			global.Env[key] = v
		}
	}
	for _, load := range []func() error{loadWd, loadTempDir} {
		if err := load(); err != nil {
			return err
		}
	}
	if path := global.Env[EnvFile]; path != "" {
		s, err := WithEnvFile(global, path)
		if err != nil {
			return err
		}
		global = s
	}
	return nil
}

// WithEnvFile returns state with the pinflow variables of the dotenv file at path
// merged in. Variables already in state win. A relative path is taken from the
// state's working directory.
//
// Errors:
//
//   - pinflow-error-config -- when the file cannot be read or parsed
func WithEnvFile(state State, path string) (State, error) {
	if !filepath.IsAbs(path) && state.WorkingDirectory != "" {
		path = filepath.Join(state.WorkingDirectory, path)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return State{}, pfapi.ErrorConfig(EnvFile, path, err.Error())
	}
	env := make(map[string]string, len(state.Env)+len(vars))
	for _, key := range envKeys {
		if v, ok := vars[key]; ok && key != EnvFile {
			env[key] = v
		}
	}
	for k, v := range state.Env {
		env[k] = v
	}
	state.Env = env
	return state, nil
}

// NewState returns a copy of the global state that can be modified freely.
// Later reloads do not affect it.
//
// Errors:
//
//   - pinflow-error-serialization -- error copying data
func NewState() (State, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	globalm.RLock()
	err := json.NewEncoder(buf).Encode(global)
	globalm.RUnlock()
	if err != nil {
		return State{}, pfapi.ErrorSerialization("copying config state", err)
	}
	var result State
	if err := json.NewDecoder(buf).Decode(&result); err != nil {
		return State{}, pfapi.ErrorSerialization("copying config state", err)
	}
	return result, nil
}

// StateWithEnv is a state holding only the given variables, for embedding programs and tests.
func StateWithEnv(env map[string]string) State {
	s := State{Env: make(map[string]string, len(env)), TempDir: os.TempDir()}
	for k, v := range env {
		s.Env[k] = v
	}
	return s
}

func init() {
	if err := ReloadGlobalState(); err != nil {
		serr, ok := err.(serum.ErrorInterface)
		if !ok {
			serr = serum.Error(pfapi.CodeConfig,
				serum.WithMessageLiteral("config initialization failed"),
				serum.WithCause(err),
			).(serum.ErrorInterface)
		}
		pfapi.TerminalError(serr, 10)
	}
}

// NOT concurrent safe
//
// Errors:
//
//   - pinflow-error-config -- when the working directory path cannot be found
func loadWd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return serum.Error(pfapi.CodeConfig,
			serum.WithMessageLiteral("unable to get working directory"),
			serum.WithCause(err),
		)
	}
	global.WorkingDirectory = cwd
	return nil
}

// NOT concurrent safe
func loadTempDir() error {
	global.TempDir = os.TempDir()
	return nil
}
