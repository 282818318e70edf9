// Package sandbox implements the Sandbox Manager (spec §4.6): it starts one
// hardened Docker container per candidate agent and exposes a handle the
// Entrypoint Invoker uses to reach the container's tool-proxy HTTP surface.
// Grounded on the teacher's internal/tools/sandbox executor/pool, which
// shells out to the docker CLI rather than linking a Docker SDK client;
// adapted here from a per-call code-exec container to one long-lived
// per-candidate container running the staged agent's entrypoint server.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/exec"
)

const tokenHeaderName = "x-caster-token"

// StartOptions describes one candidate's container: the staged agent's
// path inside the read-only staging volume, and its declared sha-256 for
// logging/audit (integrity is verified by the caller before Start).
type StartOptions struct {
	CandidateUID   int
	AgentPath      string // absolute path on the host to the staged agent.py
	StagingDir     string // host directory mounted read-only into the container
	HealthTimeout  time.Duration
	StopTimeoutSec int
}

// Deployment is the handle returned by Start: everything the Entrypoint
// Invoker needs to reach the running container.
type Deployment struct {
	ContainerID    string
	BaseURL        string
	StopTimeoutSec int
	client         *http.Client
}

// Client returns an http.Client configured with a sane default timeout for
// talking to this deployment's entrypoint server.
func (d *Deployment) Client() *http.Client {
	if d.client == nil {
		d.client = &http.Client{Timeout: 150 * time.Second}
	}
	return d.client
}

// Manager starts and stops hardened per-candidate containers, grounded on
// the teacher's dockerExecutor.runDockerCommand shell-out pattern.
type Manager struct {
	cfg         config.SandboxConfig
	seccompPath string
}

// New builds a Manager from sandbox configuration.
func New(cfg config.SandboxConfig, seccompProfilePath string) *Manager {
	return &Manager{cfg: cfg, seccompPath: seccompProfilePath}
}

// Start launches one container for opts, blocking until GET /healthz
// returns 200 or opts.HealthTimeout elapses. On any failure, any
// partially-created container is removed best-effort before returning.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*Deployment, error) {
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 15 * time.Second
	}
	stopTimeout := opts.StopTimeoutSec
	if stopTimeout <= 0 {
		stopTimeout = 10
	}

	if _, err := exec.SanitizeArgument(opts.AgentPath); err != nil {
		return nil, fmt.Errorf("sandbox: unsafe agent path: %w", err)
	}
	if _, err := exec.SanitizeArgument(opts.StagingDir); err != nil {
		return nil, fmt.Errorf("sandbox: unsafe staging dir: %w", err)
	}

	hostPort, err := freeLoopbackPort()
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to reserve loopback port: %w", err)
	}

	args := m.runArgs(opts, hostPort)
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sandbox: docker run failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	containerID := strings.TrimSpace(stdout.String())
	if containerID == "" {
		return nil, fmt.Errorf("sandbox: docker run returned no container id")
	}

	deployment := &Deployment{
		ContainerID:    containerID,
		BaseURL:        fmt.Sprintf("http://127.0.0.1:%d", hostPort),
		StopTimeoutSec: stopTimeout,
	}

	if err := m.waitHealthy(ctx, deployment, healthTimeout); err != nil {
		_ = m.Stop(context.Background(), deployment)
		return nil, fmt.Errorf("sandbox: container for uid %d never became healthy: %w", opts.CandidateUID, err)
	}

	return deployment, nil
}

// runArgs builds the docker run argument list implementing every hardening
// control spec §4.6 names: read-only rootfs, tmpfs /tmp (noexec/nosuid/
// nodev, 64MiB), all capabilities dropped, no-new-privileges, seccomp
// profile, pids/memory/cpu limits, ulimits, non-root user, loopback port
// publish, and the read-only staging volume.
func (m *Manager) runArgs(opts StartOptions, hostPort int) []string {
	image := m.cfg.Image
	if image == "" {
		image = "caster-validator/sandbox-worker:latest"
	}
	workerPort := m.cfg.WorkerEntrypointPort
	if workerPort <= 0 {
		workerPort = 8181
	}

	args := []string{
		"run", "-d",
		"--read-only",
		"--tmpfs", "/tmp:noexec,nosuid,nodev,size=64m",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--pids-limit", "128",
		"--memory", "1g",
		"--memory-swap", "1g",
		"--cpus", "1",
		"--ulimit", "nproc=128:128",
		"--ulimit", "nofile=512:512",
		"--user", "caster",
		"-p", fmt.Sprintf("127.0.0.1:%d:%d", hostPort, workerPort),
		"-v", fmt.Sprintf("%s:/staging:ro", opts.StagingDir),
		"-e", "SANDBOX_HOST=0.0.0.0",
		"-e", fmt.Sprintf("SANDBOX_PORT=%d", workerPort),
		"-e", fmt.Sprintf("CASTER_TOKEN_HEADER=%s", tokenHeaderName),
		"-e", fmt.Sprintf("CASTER_AGENT_PATH=%s", opts.AgentPath),
	}
	if m.seccompPath != "" {
		args = append(args, "--security-opt", "seccomp="+m.seccompPath)
	}
	if !m.cfg.NetworkEnabled {
		args = append(args, "--network", "caster-sandbox-net")
	}
	args = append(args, image)
	return args
}

// waitHealthy polls GET /healthz on the deployment until it returns 200 or
// timeout elapses.
func (m *Manager) waitHealthy(ctx context.Context, d *Deployment, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := d.Client()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/healthz", nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for healthz after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Stop sends docker stop with the deployment's configured timeout, then
// removes the container. It terminates any log-streaming subprocess
// implicitly by detaching stdout/stderr from the run command above.
func (m *Manager) Stop(ctx context.Context, d *Deployment) error {
	if d == nil || d.ContainerID == "" {
		return nil
	}
	stopArgs := []string{"stop", "-t", strconv.Itoa(d.StopTimeoutSec), d.ContainerID}
	if err := exec.CommandContext(ctx, "docker", stopArgs...).Run(); err != nil {
		_ = exec.CommandContext(ctx, "docker", "kill", d.ContainerID).Run()
	}
	return exec.CommandContext(ctx, "docker", "rm", "-f", d.ContainerID).Run()
}

// freeLoopbackPort asks the OS for an unused TCP port on loopback by
// briefly binding to port 0, grounded on the teacher's daytona_runner.go
// use of a similar probe-and-release approach for local port selection.
func freeLoopbackPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
