package launcher

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/logging"
)

// ContainerAPI is the part of the docker engine API the launcher drives.
// *client.Client satisfies it.
type ContainerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerClient connects to the docker daemon named by the usual DOCKER_* variables.
var DockerClient = func() (ContainerAPI, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// ContainerSpec describes the container that runs the engine d for s, under a fresh name.
// The engine's port d.Port is published on s.ServerIP:s.ServerPort.
func ContainerSpec(s config.Settings, d config.DockerConfig) (*container.Config, *container.HostConfig, string) {
	port := nat.Port(strconv.Itoa(d.Port) + "/tcp")
	cfg := &container.Config{
		Image:        d.Image,
		Cmd:          d.Args,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	host := &container.HostConfig{
		PortBindings: nat.PortMap{port: []nat.PortBinding{{HostIP: s.ServerIP, HostPort: strconv.Itoa(s.ServerPort)}}},
	}
	if d.MountedPath != "" {
		host.Binds = []string{d.MountedPath + ":" + d.MountedPath}
	}
	return cfg, host, "pinflow-" + uuid.New().String()
}

type containerRun struct {
	api  ContainerAPI
	id   string
	name string
}

// startContainer creates and starts the engine container, then follows its
// output into the log and closes p.done once it stops running.
func (p *Process) startContainer(ctx context.Context, s config.Settings) error {
	log := logging.Ctx(ctx)
	api, err := DockerClient()
	if err != nil {
		return pfapi.ErrorIo("connecting to docker", "", err)
	}
	cfg, host, name := ContainerSpec(s, *s.Docker)
	resp, err := api.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		api.Close()
		return pfapi.ErrorIo("creating engine container", s.Docker.Image, err)
	}
	p.container = &containerRun{api: api, id: resp.ID, name: name}
	for _, w := range resp.Warnings {
		log.Info(LOG_TAG, "docker: %s", w)
	}
	// Wait before starting so a fast exit is not missed.
	waitC, errC := api.ContainerWait(context.Background(), resp.ID, container.WaitConditionNextExit)
	if err := api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.container.remove(context.Background())
		return pfapi.ErrorIo("starting engine container", s.Docker.Image, err)
	}
	go func() {
		select {
		case r := <-waitC:
			if r.Error != nil {
				p.waitErr = fmt.Errorf("container %s: %s", name, r.Error.Message)
			} else if r.StatusCode != 0 {
				p.waitErr = fmt.Errorf("container %s exited with status %d", name, r.StatusCode)
			}
		case err := <-errC:
			p.waitErr = err
		}
		close(p.done)
	}()
	if logs, err := api.ContainerLogs(context.Background(), resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true}); err == nil {
		go func() {
			defer logs.Close()
			stdcopy.StdCopy(log.InfoWriter(LOG_TAG), log.InfoWriter(LOG_TAG), logs)
		}()
	} else {
		log.Info(LOG_TAG, "not following logs of %s: %s", name, err)
	}
	log.Info(LOG_TAG, "started container %s (%s), waiting for %s", name, s.Docker.Image, p.addr)
	return nil
}

func (c *containerRun) stop(ctx context.Context) {
	if err := c.api.ContainerStop(ctx, c.id, container.StopOptions{}); err != nil {
		logging.Ctx(ctx).Info(LOG_TAG, "stopping container %s: %s", c.name, err)
	}
}

func (c *containerRun) remove(ctx context.Context) {
	if err := c.api.ContainerRemove(ctx, c.id, container.RemoveOptions{Force: true}); err != nil {
		logging.Ctx(ctx).Info(LOG_TAG, "removing container %s: %s", c.name, err)
	}
	c.api.Close()
}
