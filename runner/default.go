package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/pflag"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/logger"
	"github.com/isdmx/aocd/source"
	"github.com/isdmx/aocd/store"
)

// Flags the sandbox coordinator passes to the child program.
const (
	APIAddrFlag = "aocd-api-addr"
	SubmitFlag  = "submit"
	TimeFlag    = "time"
)

var (
	// ErrDefaultAlreadySet is returned by SetDefault once a default runner exists.
	ErrDefaultAlreadySet = errors.New("default runner already set")
	// ErrInsideSandbox is returned by DefaultDirect when the process talks to
	// the puzzle site through a sandbox coordinator.
	ErrInsideSandbox = errors.New("direct access to the puzzle site is not available inside the sandbox")
)

var (
	defaultMu     sync.Mutex
	defaultRunner *Runner
)

// Default returns the process-wide runner, creating it on first use from the
// process arguments. When an API address is passed on the command line the
// runner talks to the sandbox coordinator; otherwise it uses the puzzle site
// directly with the local configuration.
func Default() (*Runner, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRunner != nil {
		return defaultRunner, nil
	}
	r, err := newDefault(os.Args[1:])
	if err != nil {
		return nil, err
	}
	defaultRunner = r
	return r, nil
}

// SetDefault installs r as the process-wide runner. It fails if a default
// runner was already set or created.
func SetDefault(r *Runner) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRunner != nil {
		return ErrDefaultAlreadySet
	}
	defaultRunner = r
	return nil
}

// RunPart runs solver on the default runner.
func RunPart(ctx context.Context, year, day, part int, solver Solver) (PartResult, error) {
	r, err := Default()
	if err != nil {
		return PartResult{}, err
	}
	return r.RunPart(ctx, year, day, part, solver)
}

// DefaultDirect returns the direct puzzle site provider behind the default
// runner.
func DefaultDirect() (*source.Direct, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return directOf(r)
}

func directOf(r *Runner) (*source.Direct, error) {
	switch s := r.Source().(type) {
	case *source.Direct:
		return s, nil
	case *source.Proxy:
		return nil, ErrInsideSandbox
	default:
		return nil, fmt.Errorf("default runner uses an unsupported source %T", s)
	}
}

type childFlags struct {
	apiAddr string
	submit  bool
	time    bool
}

// parseChildFlags picks the runner flags out of args and ignores the rest.
func parseChildFlags(args []string) (childFlags, error) {
	var f childFlags

	fs := pflag.NewFlagSet("aocd", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.apiAddr, APIAddrFlag, "", "address of the sandbox coordinator")
	fs.BoolVarP(&f.submit, SubmitFlag, "s", false, "submit answers")
	fs.BoolVar(&f.time, TimeFlag, false, "report solver durations")

	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return childFlags{}, fmt.Errorf("failed to parse runner flags: %w", err)
	}
	return f, nil
}

func newDefault(args []string) (*Runner, error) {
	flags, err := parseChildFlags(args)
	if err != nil {
		return nil, err
	}

	if flags.apiAddr != "" {
		proxy, err := source.NewProxy(flags.apiAddr, nil)
		if err != nil {
			return nil, err
		}
		return New(Config{
			Source:  proxy,
			Options: PartialOptions{Submit: &flags.submit, Time: &flags.time},
		})
	}

	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	base := OptionsFromConfig(cfg.Runner)
	base.Submit = base.Submit || flags.submit
	base.Time = base.Time || flags.time

	direct := source.NewDirectFromConfig(cfg, log, store.New(cfg, log))
	return New(Config{
		Source: direct,
		Base:   &base,
		Logger: log,
	})
}
