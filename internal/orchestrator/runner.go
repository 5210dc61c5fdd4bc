// Package orchestrator restarts Docker containers on a remote host over
// SSH, in dependency order, polling health after each start.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
)

const connectTimeout = 30 * time.Second

// Runner executes shell commands on the container host. One Runner is
// opened per batch and must be closed when the batch ends.
type Runner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
	Close() error
}

// RunnerFactory opens a fresh Runner. Concurrent invocations each get
// their own session.
type RunnerFactory func(ctx context.Context) (Runner, error)

// sshRunner holds one SSH connection; each command runs in its own
// session on that connection.
type sshRunner struct {
	client *ssh.Client
}

// NewSSHRunnerFactory builds a factory from the Docker host settings.
// Key-file auth is preferred over password auth when both are set.
func NewSSHRunnerFactory(settings *conf.DockerSettings) (RunnerFactory, error) {
	if settings.Host == "" {
		return nil, errors.Newf("docker host is not configured").
			Component("orchestrator").
			Category(errors.CategoryConfiguration).
			Build()
	}

	config := &ssh.ClientConfig{
		User:            settings.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // home-lab host, no key pinning
		Timeout:         connectTimeout,
	}

	switch {
	case settings.KeyFile != "":
		key, err := os.ReadFile(settings.KeyFile)
		if err != nil {
			return nil, errors.New(err).
				Component("orchestrator").
				Category(errors.CategoryConfiguration).
				Context("key_file", settings.KeyFile).
				Build()
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.New(err).
				Component("orchestrator").
				Category(errors.CategoryConfiguration).
				Context("key_file", settings.KeyFile).
				Build()
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case settings.Password != "":
		config.Auth = []ssh.AuthMethod{ssh.Password(settings.Password)}
	default:
		return nil, errors.Newf("no SSH authentication method configured").
			Component("orchestrator").
			Category(errors.CategoryConfiguration).
			Build()
	}

	port := settings.Port
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", settings.Host, port)

	return func(ctx context.Context) (Runner, error) {
		conn, err := awaitDial(ctx, func() (io.Closer, error) {
			client, err := ssh.Dial("tcp", addr, config)
			if err != nil {
				return nil, err
			}
			return client, nil
		})
		if err != nil {
			category := errors.CategoryNetwork
			if ctx.Err() != nil {
				category = errors.CategoryTimeout
			}
			return nil, errors.New(err).
				Component("orchestrator").
				Category(category).
				NetworkContext(addr, "ssh_dial").
				Build()
		}
		return &sshRunner{client: conn.(*ssh.Client)}, nil
	}, nil
}

// awaitDial runs dial in a goroutine and waits for it or the context,
// whichever finishes first. A connection that completes after the context
// expired is closed in the background so it is not leaked.
func awaitDial(ctx context.Context, dial func() (io.Closer, error)) (io.Closer, error) {
	type dialResult struct {
		conn io.Closer
		err  error
	}
	resultChan := make(chan dialResult, 1)
	go func() {
		conn, err := dial()
		resultChan <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if result := <-resultChan; result.conn != nil {
				_ = result.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.conn, result.err
	}
}

// Run executes one command in a fresh session. Stdout and stderr are
// captured separately; a non-zero exit status is not an error here since
// callers inspect stderr to classify failures.
func (r *sshRunner) Run(ctx context.Context, command string) (string, string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", "", errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryNetwork).
			Context("operation", "new_session").
			Build()
	}
	defer func() {
		_ = session.Close()
	}()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), errors.New(ctx.Err()).
			Component("orchestrator").
			Category(errors.CategoryTimeout).
			Context("command", command).
			Build()
	case err := <-done:
		if err != nil {
			if _, ok := err.(*ssh.ExitError); ok {
				// Command ran but exited non-zero; stderr carries the cause.
				return stdout.String(), stderr.String(), nil
			}
			return stdout.String(), stderr.String(), errors.New(err).
				Component("orchestrator").
				Category(errors.CategoryCommandExec).
				Context("command", command).
				Build()
		}
		return stdout.String(), stderr.String(), nil
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}
