package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/runner"
	"github.com/isdmx/aocd/source"
)

const (
	netPermissionFlag = "--allow-net"
	readHeaderTimeout = 10 * time.Second
)

// Coordinator runs a script in a network-restricted runtime and serves it the
// puzzle input and answer API over an authenticated loopback listener.
type Coordinator struct {
	logger       *zap.Logger
	source       source.Source
	host         string
	runtime      string
	runtimeArgs  []string
	runtimeFlags []string
	testArgs     []string
	cmdRunner    CommandRunner
	fs           afero.Fs
	newPassword  func() string
}

// CoordinatorOption defines a functional option for Coordinator
type CoordinatorOption func(*Coordinator)

// WithCommandRunner sets the CommandRunner used to spawn the runtime
func WithCommandRunner(cmdRunner CommandRunner) CoordinatorOption {
	return func(c *Coordinator) {
		c.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the filesystem searched for day scripts
func WithFileSystem(fs afero.Fs) CoordinatorOption {
	return func(c *Coordinator) {
		c.fs = fs
	}
}

// WithHost sets the loopback host the API listens on
func WithHost(host string) CoordinatorOption {
	return func(c *Coordinator) {
		c.host = host
	}
}

// WithRuntime sets the runtime executable and the arguments that precede its flags
func WithRuntime(runtime string, args ...string) CoordinatorOption {
	return func(c *Coordinator) {
		c.runtime = runtime
		c.runtimeArgs = args
	}
}

// WithRuntimeFlags sets runtime flags applied to every run
func WithRuntimeFlags(flags ...string) CoordinatorOption {
	return func(c *Coordinator) {
		c.runtimeFlags = flags
	}
}

// WithTestArgs sets the runtime arguments used to run day tests
func WithTestArgs(args ...string) CoordinatorOption {
	return func(c *Coordinator) {
		c.testArgs = args
	}
}

// NewCoordinator creates a Coordinator backed by src
func NewCoordinator(logger *zap.Logger, src source.Source, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		logger:      logger,
		source:      src,
		host:        "localhost",
		runtime:     "deno",
		runtimeArgs: []string{"run"},
		testArgs:    []string{"test"},
		cmdRunner:   &RealCommandRunner{},
		fs:          afero.NewOsFs(),
		newPassword: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewCoordinatorFromConfig creates a Coordinator from the application configuration
func NewCoordinatorFromConfig(cfg *config.Config, logger *zap.Logger, src *source.Direct) *Coordinator {
	return NewCoordinator(logger, src,
		WithHost(cfg.Sandbox.Host),
		WithRuntime(cfg.Sandbox.Runtime, cfg.Sandbox.RuntimeArgs...),
		WithRuntimeFlags(cfg.Sandbox.RuntimeFlags...),
		WithTestArgs(cfg.Sandbox.TestArgs...),
	)
}

// RunOptions describe one sandboxed run
type RunOptions struct {
	Script       string
	RuntimeFlags []string
	Submit       bool
	Time         bool
}

// Run starts the loopback API, spawns the script and waits for it. The
// returned code is the child's exit code. The API is shut down as soon as the
// child exits. If the API fails first, Run returns an error and leaves the
// child to exit on its own.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Script == "" {
		return 0, errors.New("no script provided")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(c.host, "0"))
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", c.host, err)
	}

	password := c.newPassword()
	srv := &http.Server{
		Handler:           NewHandler(c.source, password, opts.Submit, c.logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var closeOnce sync.Once
	teardown := func() {
		closeOnce.Do(func() {
			if closeErr := srv.Close(); closeErr != nil {
				c.logger.Warn("Failed to close sandbox server", zap.Error(closeErr))
			}
		})
	}
	defer teardown()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	apiHost := net.JoinHostPort(c.host, strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))
	args := c.childArgs(opts, apiHost, password)

	c.logger.Info("Starting sandboxed script",
		zap.String("script", opts.Script),
		zap.String("api", apiHost),
		zap.Bool("submit", opts.Submit),
	)

	type exit struct {
		code int
		err  error
	}
	childDone := make(chan exit, 1)
	go func() {
		code, runErr := c.cmdRunner.RunCommand(ctx, args)
		childDone <- exit{code, runErr}
	}()

	select {
	case res := <-childDone:
		teardown()
		<-serveErr
		if res.err != nil {
			return 0, fmt.Errorf("failed to run %s: %w", c.runtime, res.err)
		}
		c.logger.Debug("Sandboxed script exited", zap.Int("exit_code", res.code))
		return res.code, nil
	case err := <-serveErr:
		teardown()
		return 0, fmt.Errorf("sandbox server failed: %w", err)
	}
}

// APIAddr is the address passed to the child, including its credentials.
func APIAddr(apiHost, password string) string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(Username, password),
		Host:   apiHost,
	}
	return u.String()
}

func (c *Coordinator) childArgs(opts RunOptions, apiHost, password string) []string {
	flags := append(append([]string{}, c.runtimeFlags...), opts.RuntimeFlags...)

	args := []string{c.runtime}
	args = append(args, c.runtimeArgs...)
	args = append(args, MergeNetPermission(flags, apiHost)...)
	args = append(args, opts.Script, "--"+runner.APIAddrFlag+"="+APIAddr(apiHost, password))
	if opts.Submit {
		args = append(args, "--"+runner.SubmitFlag)
	}
	if opts.Time {
		args = append(args, "--"+runner.TimeFlag)
	}
	return args
}

// MergeNetPermission makes sure the runtime flags allow network access to
// apiHost. A bare --allow-net already allows everything and is left alone. The
// first --allow-net=<list> gets apiHost prepended to its list. Otherwise a new
// --allow-net=<apiHost> flag is appended. The input slice is not modified.
func MergeNetPermission(flags []string, apiHost string) []string {
	merged := append([]string{}, flags...)
	for i, flag := range merged {
		if flag == netPermissionFlag {
			return merged
		}
		if list, ok := strings.CutPrefix(flag, netPermissionFlag+"="); ok {
			merged[i] = netPermissionFlag + "=" + apiHost + "," + list
			return merged
		}
	}
	return append(merged, netPermissionFlag+"="+apiHost)
}
