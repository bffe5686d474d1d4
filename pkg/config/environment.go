package config

const (
	// EnvStartServer asks the client to launch a co-located engine before connecting.
	EnvStartServer = "PINFLOW_START_SERVER"
	// EnvServerIP is the address of the engine to connect to.
	EnvServerIP = "PINFLOW_SERVER_IP"
	// EnvServerPort is the port of the engine to connect to.
	EnvServerPort = "PINFLOW_SERVER_PORT"
	// EnvEnginePath is the root of an engine installation (bin/ and lib/ below it).
	EnvEnginePath = "PINFLOW_ENGINE_PATH"
	// EnvEngineConfig selects the engine build: "release" or "debug".
	EnvEngineConfig = "PINFLOW_ENGINE_CONFIG"
	// EnvDockerConfig holds a JSON record describing an engine container to launch instead of a binary.
	EnvDockerConfig = "PINFLOW_DOCKER_CONFIG"
	// EnvFile names a dotenv file supplying any of the above that the environment leaves unset.
	EnvFile = "PINFLOW_ENV_FILE"
)

// NOTE: keep this up to date or the config loader won't load them
var envKeys = []string{
	EnvStartServer,
	EnvServerIP,
	EnvServerPort,
	EnvEnginePath,
	EnvEngineConfig,
	EnvDockerConfig,
	EnvFile,
}
