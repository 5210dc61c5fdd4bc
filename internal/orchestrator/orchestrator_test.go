package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrbiter/arrbiter/internal/conf"
)

// fakeRunner scripts per-command responses and records what ran.
type fakeRunner struct {
	commands []string
	respond  func(command string) (stdout, stderr string, err error)
	closed   bool
}

func (f *fakeRunner) Run(_ context.Context, command string) (string, string, error) {
	f.commands = append(f.commands, command)
	if f.respond == nil {
		return "", "", nil
	}
	return f.respond(command)
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func newTestOrchestrator(runner *fakeRunner) *Orchestrator {
	factory := func(context.Context) (Runner, error) { return runner, nil }
	return New(factory, &conf.DockerSettings{
		HealthPollInterval: 1, // not exercised; fakes report healthy immediately
		HealthMaxAttempts:  1,
	})
}

// healthyResponder answers docker stop/start silently and reports every
// container running and healthy.
func healthyResponder(command string) (string, string, error) {
	if strings.HasPrefix(command, "docker inspect") {
		return "true|healthy", "", nil
	}
	return "", "", nil
}

func TestRestartHappyPath(t *testing.T) {
	runner := &fakeRunner{respond: healthyResponder}
	o := newTestOrchestrator(runner)

	var phases []Phase
	result := o.Restart(context.Background(), []string{"sabnzbd", "sonarr", "plex"}, func(p Progress) {
		phases = append(phases, p.Phase)
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"sabnzbd", "sonarr", "plex"}, result.Restarted)
	assert.True(t, runner.closed)

	// Strict per-container ordering: stop, start, inspect.
	require.Len(t, runner.commands, 9)
	assert.Equal(t, "docker stop sabnzbd", runner.commands[0])
	assert.Equal(t, "docker start sabnzbd", runner.commands[1])
	assert.Contains(t, runner.commands[2], "docker inspect")
	assert.Equal(t, "docker stop sonarr", runner.commands[3])

	assert.Contains(t, phases, PhaseHealthy)
}

func TestRestartToleratesMissingContainerOnStop(t *testing.T) {
	runner := &fakeRunner{respond: func(command string) (string, string, error) {
		if strings.HasPrefix(command, "docker stop") {
			return "", "Error response from daemon: No such container: sonarr", nil
		}
		return healthyResponder(command)
	}}
	o := newTestOrchestrator(runner)

	result := o.Restart(context.Background(), []string{"sonarr"}, nil)
	assert.True(t, result.Success)
}

func TestRestartAbortsOnStartFailure(t *testing.T) {
	runner := &fakeRunner{respond: func(command string) (string, string, error) {
		if command == "docker start sonarr" {
			return "", "Error response from daemon: driver failed", nil
		}
		return healthyResponder(command)
	}}
	o := newTestOrchestrator(runner)

	result := o.Restart(context.Background(), []string{"sabnzbd", "sonarr", "plex"}, nil)

	require.False(t, result.Success)
	assert.Equal(t, "sonarr", result.FailedContainer)
	assert.Equal(t, PhaseStarting, result.FailedPhase)
	assert.Equal(t, []string{"sabnzbd"}, result.Restarted)
	assert.True(t, runner.closed)

	// plex was never attempted.
	for _, command := range runner.commands {
		assert.NotContains(t, command, "plex")
	}
}

func TestRestartAbortsOnHealthTimeout(t *testing.T) {
	runner := &fakeRunner{respond: func(command string) (string, string, error) {
		if strings.HasPrefix(command, "docker inspect") {
			if strings.Contains(command, "sonarr") {
				return "true|starting", "", nil
			}
			return "true|healthy", "", nil
		}
		return "", "", nil
	}}
	o := newTestOrchestrator(runner)

	result := o.Restart(context.Background(), []string{"sabnzbd", "sonarr", "plex"}, nil)

	require.False(t, result.Success)
	assert.Equal(t, "sonarr", result.FailedContainer)
	assert.Equal(t, PhaseHealthPolling, result.FailedPhase)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "did not become healthy")

	for _, command := range runner.commands {
		assert.NotContains(t, command, "plex")
	}
}

func TestRestartConnectFailureIsTerminal(t *testing.T) {
	factory := func(context.Context) (Runner, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	o := New(factory, &conf.DockerSettings{})

	result := o.Restart(context.Background(), []string{"plex"}, nil)
	require.False(t, result.Success)
	assert.Empty(t, result.Restarted)
	assert.Error(t, result.Err)
}

func TestHealthyStates(t *testing.T) {
	assert.True(t, HealthState{Running: true, Health: "healthy"}.Healthy())
	assert.True(t, HealthState{Running: true, Health: ""}.Healthy())
	assert.False(t, HealthState{Running: true, Health: "starting"}.Healthy())
	assert.False(t, HealthState{Running: false, Health: "healthy"}.Healthy())
}

func TestStatusReportsEveryContainer(t *testing.T) {
	runner := &fakeRunner{respond: func(command string) (string, string, error) {
		if strings.Contains(command, "ghost") {
			return "", "Error: No such object: ghost", nil
		}
		return "true|", "", nil
	}}
	o := newTestOrchestrator(runner)

	states, err := o.Status(context.Background(), []string{"plex", "ghost"})
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.True(t, states[0].Healthy())
	assert.Equal(t, "not_found", states[1].Health)
	assert.True(t, runner.closed)
}
