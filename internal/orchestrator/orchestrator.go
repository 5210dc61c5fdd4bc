package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
)

// Phase identifies where in the restart sequence a container is.
type Phase string

const (
	PhaseStopping      Phase = "stopping"
	PhaseStarting      Phase = "starting"
	PhaseHealthPolling Phase = "health_polling"
	PhaseHealthy       Phase = "healthy"
	PhaseFailed        Phase = "failed"
)

// Progress is one observable per-container transition, reported while a
// batch is running.
type Progress struct {
	Container string
	Phase     Phase
	Attempt   int
	Detail    string
}

// ProgressFunc receives transitions as they happen. It may be nil.
type ProgressFunc func(Progress)

// Result summarizes one batch. On failure, FailedContainer and
// FailedPhase identify the abort point; containers after it were never
// attempted.
type Result struct {
	// BatchID correlates the log lines of one restart batch.
	BatchID         string
	Success         bool
	Restarted       []string
	FailedContainer string
	FailedPhase     Phase
	Err             error
}

// HealthState is the point-in-time status of one container.
type HealthState struct {
	Container string
	Running   bool
	Health    string // "healthy", "unhealthy", "starting", "" when no check, "not_found", "error"
}

// Healthy reports whether the container is up: running, with either a
// passing health check or no health check at all.
func (h HealthState) Healthy() bool {
	return h.Running && (h.Health == "healthy" || h.Health == "")
}

// Orchestrator sequences container stop/start/health cycles over a
// Runner. Each Restart call opens and closes its own Runner.
type Orchestrator struct {
	factory      RunnerFactory
	pollInterval time.Duration
	maxAttempts  int
	logger       *slog.Logger
}

// New builds an orchestrator from the Docker settings. Defaults match a
// ten minute health bound (60 attempts at 10 seconds).
func New(factory RunnerFactory, settings *conf.DockerSettings) *Orchestrator {
	pollInterval := time.Duration(settings.HealthPollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	maxAttempts := settings.HealthMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Orchestrator{
		factory:      factory,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		logger:       logging.ForService("orchestrator"),
	}
}

// Restart stops, starts and health-polls each container strictly in the
// given order. The first failure aborts the remaining containers. The
// runner is always closed before returning.
func (o *Orchestrator) Restart(ctx context.Context, containers []string, progress ProgressFunc) Result {
	batchID := uuid.NewString()
	if len(containers) == 0 {
		return Result{BatchID: batchID, Success: true}
	}

	logger := o.logger.With("batch_id", batchID)
	logger.Info("Starting container restart batch", "containers", containers)

	runner, err := o.factory(ctx)
	if err != nil {
		return Result{BatchID: batchID, Err: err}
	}
	defer func() {
		if closeErr := runner.Close(); closeErr != nil {
			logger.Warn("Failed to close remote session", "error", closeErr)
		}
	}()

	result := Result{BatchID: batchID, Restarted: make([]string, 0, len(containers))}
	for _, container := range containers {
		if err := o.restartOne(ctx, runner, container, progress, &result); err != nil {
			result.FailedContainer = container
			result.Err = err
			logger.Error("Container restart batch aborted",
				"container", container, "phase", result.FailedPhase, "error", err)
			return result
		}
		result.Restarted = append(result.Restarted, container)
	}

	result.Success = true
	return result
}

func (o *Orchestrator) restartOne(ctx context.Context, runner Runner, container string, progress ProgressFunc, result *Result) error {
	report(progress, Progress{Container: container, Phase: PhaseStopping})
	result.FailedPhase = PhaseStopping
	if err := o.stopContainer(ctx, runner, container); err != nil {
		return err
	}

	report(progress, Progress{Container: container, Phase: PhaseStarting})
	result.FailedPhase = PhaseStarting
	if err := o.startContainer(ctx, runner, container); err != nil {
		return err
	}

	result.FailedPhase = PhaseHealthPolling
	if err := o.awaitHealthy(ctx, runner, container, progress); err != nil {
		return err
	}

	report(progress, Progress{Container: container, Phase: PhaseHealthy})
	o.logger.Info("Container restarted", "container", container)
	return nil
}

// stopContainer tolerates an already-missing container; any other stderr
// output is fatal for the batch.
func (o *Orchestrator) stopContainer(ctx context.Context, runner Runner, container string) error {
	_, stderr, err := runner.Run(ctx, "docker stop "+container)
	if err != nil {
		return err
	}
	if stderr != "" && !strings.Contains(stderr, "No such container") {
		return errors.Newf("stop failed: %s", strings.TrimSpace(stderr)).
			Component("orchestrator").
			Category(errors.CategoryCommandExec).
			Context("container", container).
			Build()
	}
	return nil
}

func (o *Orchestrator) startContainer(ctx context.Context, runner Runner, container string) error {
	_, stderr, err := runner.Run(ctx, "docker start "+container)
	if err != nil {
		return err
	}
	if stderr != "" {
		return errors.Newf("start failed: %s", strings.TrimSpace(stderr)).
			Component("orchestrator").
			Category(errors.CategoryCommandExec).
			Context("container", container).
			Build()
	}
	return nil
}

// awaitHealthy polls until the container reports healthy or the attempt
// bound is exhausted.
func (o *Orchestrator) awaitHealthy(ctx context.Context, runner Runner, container string, progress ProgressFunc) error {
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		state, err := o.Inspect(ctx, runner, container)
		if err != nil {
			return err
		}
		if state.Healthy() {
			return nil
		}

		report(progress, Progress{
			Container: container,
			Phase:     PhaseHealthPolling,
			Attempt:   attempt,
			Detail:    fmt.Sprintf("running=%t health=%s", state.Running, state.Health),
		})

		if attempt == o.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component("orchestrator").
				Category(errors.CategoryTimeout).
				Context("container", container).
				Build()
		case <-time.After(o.pollInterval):
		}
	}

	return errors.Newf("container %s did not become healthy within %d attempts", container, o.maxAttempts).
		Component("orchestrator").
		Category(errors.CategoryTimeout).
		Context("container", container).
		Context("attempts", o.maxAttempts).
		Build()
}

// Inspect fetches the running state and health of one container, fresh on
// every call.
func (o *Orchestrator) Inspect(ctx context.Context, runner Runner, container string) (HealthState, error) {
	command := fmt.Sprintf(
		`docker inspect --format '{{.State.Running}}|{{if .State.Health}}{{.State.Health.Status}}{{end}}' %s`,
		container)

	stdout, stderr, err := runner.Run(ctx, command)
	if err != nil {
		return HealthState{Container: container, Health: "error"}, err
	}
	if stderr != "" {
		if strings.Contains(stderr, "No such object") || strings.Contains(stderr, "No such container") {
			return HealthState{Container: container, Health: "not_found"}, nil
		}
		return HealthState{Container: container, Health: "error"}, errors.Newf("inspect failed: %s", strings.TrimSpace(stderr)).
			Component("orchestrator").
			Category(errors.CategoryCommandExec).
			Context("container", container).
			Build()
	}

	running, health, _ := strings.Cut(strings.TrimSpace(stdout), "|")
	return HealthState{
		Container: container,
		Running:   running == "true",
		Health:    health,
	}, nil
}

// Status inspects every container in one session, for the status command.
func (o *Orchestrator) Status(ctx context.Context, containers []string) ([]HealthState, error) {
	runner, err := o.factory(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = runner.Close()
	}()

	states := make([]HealthState, 0, len(containers))
	for _, container := range containers {
		state, err := o.Inspect(ctx, runner, container)
		if err != nil {
			state = HealthState{Container: container, Health: "error"}
		}
		states = append(states, state)
	}
	return states, nil
}

func report(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}
