// Package cloudmapper drives the external CloudMapper tool: network
// collection, diagram preparation, site packaging and its local webserver.
package cloudmapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/internal/config"
)

const (
	script    = "cloudmapper.py"
	portTries = 20
)

// PrepareFlags are passed to the prepare step.
var PrepareFlags = []string{
	"--no-internal-edges",
	"--no-inter-rds-edges",
	"--collapse-asgs",
	"--no-azs",
	"--no-node-data",
}

// ErrNoFreePort is returned when every probed port is taken.
var ErrNoFreePort = errors.New("no free port found")

// Job runs CloudMapper commands inside its checkout directory.
type Job struct {
	dir    string
	python string
	bind   string
}

// New creates a job from configuration.
func New(cfg config.CloudMapperConfig) *Job {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	bind := cfg.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}
	return &Job{dir: cfg.Dir, python: python, bind: bind}
}

// Run executes collect then prepare for account over regions.
func (j *Job) Run(ctx context.Context, account string, regions []string) error {
	if _, err := os.Stat(filepath.Join(j.dir, script)); err != nil {
		return fmt.Errorf("%s not found in %s: %w", script, j.dir, err)
	}

	regionArg := strings.Join(regions, ",")
	log.Info().Str("account", account).Str("regions", regionArg).Msg("cloudmapper collect")
	if _, err := j.run(ctx, "collect", "--account", account, "--regions", regionArg); err != nil {
		return err
	}

	log.Info().Str("account", account).Msg("cloudmapper prepare")
	args := append([]string{"prepare", "--account", account}, PrepareFlags...)
	if _, err := j.run(ctx, args...); err != nil {
		return err
	}
	return nil
}

// run executes one cloudmapper.py subcommand and returns its stdout.
func (j *Job) run(ctx context.Context, args ...string) (string, error) {
	argv := append([]string{script}, args...)
	cmd := exec.CommandContext(ctx, j.python, argv...)
	cmd.Dir = j.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Command: append([]string{j.python}, argv...),
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// CommandError carries the output of a failed CloudMapper command.
type CommandError struct {
	Command []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("cloudmapper command failed: %s: %v\nstdout:\n%s\nstderr:\n%s",
		strings.Join(e.Command, " "), e.Err, e.Stdout, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Webserver is a running CloudMapper webserver process.
type Webserver struct {
	Port int
	cmd  *exec.Cmd
}

// PID returns the process id of the webserver.
func (w *Webserver) PID() int {
	if w == nil || w.cmd == nil || w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// Stop kills the webserver and waits for it to exit.
func (w *Webserver) Stop() error {
	if w == nil || w.cmd == nil || w.cmd.Process == nil {
		return nil
	}
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill webserver: %w", err)
	}
	_ = w.cmd.Wait()
	return nil
}

// StartWebserver launches the webserver on the first free port at or after
// port and returns without waiting for it.
func (j *Job) StartWebserver(ctx context.Context, port int) (*Webserver, error) {
	free, err := FindFreePort(ctx, j.bind, port, portTries)
	if err != nil {
		return nil, err
	}

	args := []string{script, "webserver", "--port", strconv.Itoa(free)}
	if !isLoopback(j.bind) {
		args = append(args, "--public")
	}

	cmd := exec.Command(j.python, args...)
	cmd.Dir = j.dir
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start webserver: %w", err)
	}

	log.Info().Int("port", free).Int("pid", cmd.Process.Pid).Msg("cloudmapper webserver started")
	return &Webserver{Port: free, cmd: cmd}, nil
}

// FindFreePort returns the first port in [start, start+tries) that nothing
// accepts connections on.
func FindFreePort(ctx context.Context, host string, start, tries int) (int, error) {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	for port := start; port < start+tries; port++ {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return port, nil
		}
		_ = conn.Close()
	}
	return 0, fmt.Errorf("%w starting at %d", ErrNoFreePort, start)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
