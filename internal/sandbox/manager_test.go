package sandbox

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/config"
)

func TestRunArgs_DefaultsAndHardening(t *testing.T) {
	m := New(config.SandboxConfig{}, "")
	args := m.runArgs(StartOptions{CandidateUID: 1, AgentPath: "/staging/abc/agent.py", StagingDir: "/staging/abc"}, 23456)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--read-only",
		"--cap-drop ALL",
		"--security-opt no-new-privileges",
		"--user caster",
		"127.0.0.1:23456:8181",
		"/staging/abc:/staging:ro",
		"caster-validator/sandbox-worker:latest",
		"--network caster-sandbox-net",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("runArgs() missing %q in %q", want, joined)
		}
	}
}

func TestRunArgs_CustomImageAndPort(t *testing.T) {
	m := New(config.SandboxConfig{Image: "custom/image:v2", WorkerEntrypointPort: 9000, NetworkEnabled: true}, "")
	args := m.runArgs(StartOptions{StagingDir: "/staging/x"}, 1234)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "custom/image:v2") {
		t.Errorf("expected custom image in args: %q", joined)
	}
	if !strings.Contains(joined, "127.0.0.1:1234:9000") {
		t.Errorf("expected custom worker port in args: %q", joined)
	}
	if strings.Contains(joined, "caster-sandbox-net") {
		t.Error("expected --network to be omitted when NetworkEnabled is true")
	}
}

func TestRunArgs_SeccompProfileAppended(t *testing.T) {
	m := New(config.SandboxConfig{}, "/etc/caster/seccomp.json")
	args := m.runArgs(StartOptions{}, 1)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "seccomp=/etc/caster/seccomp.json") {
		t.Errorf("expected seccomp profile in args: %q", joined)
	}
}

func TestStart_RejectsUnsafeAgentPath(t *testing.T) {
	m := New(config.SandboxConfig{}, "")
	_, err := m.Start(context.Background(), StartOptions{AgentPath: "/staging/abc; rm -rf /", StagingDir: "/staging/abc"})
	if err == nil {
		t.Fatal("expected Start to reject an agent path containing shell metacharacters")
	}
}

func TestStart_RejectsUnsafeStagingDir(t *testing.T) {
	m := New(config.SandboxConfig{}, "")
	_, err := m.Start(context.Background(), StartOptions{AgentPath: "/staging/abc/agent.py", StagingDir: "/staging/abc`whoami`"})
	if err == nil {
		t.Fatal("expected Start to reject a staging dir containing shell metacharacters")
	}
}

func TestStop_NilDeploymentIsNoop(t *testing.T) {
	m := New(config.SandboxConfig{}, "")
	if err := m.Stop(context.Background(), nil); err != nil {
		t.Errorf("Stop(nil) error = %v, want nil", err)
	}
}

func TestFreeLoopbackPort(t *testing.T) {
	port, err := freeLoopbackPort()
	if err != nil {
		t.Fatalf("freeLoopbackPort() error = %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("port = %d, want a valid TCP port", port)
	}
}
