package sandbox

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/aocd/source"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	mu       sync.Mutex
	args     [][]string
	RunFunc  func(ctx context.Context, args []string) (int, error)
	exitCode int
	err      error
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string) (int, error) {
	m.mu.Lock()
	m.args = append(m.args, args)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, args)
	}
	return m.exitCode, m.err
}

func (m *MockCommandRunner) calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.args...)
}

func apiAddrArg(t *testing.T, args []string) string {
	t.Helper()
	for _, arg := range args {
		if addr, ok := strings.CutPrefix(arg, "--aocd-api-addr="); ok {
			return addr
		}
	}
	t.Fatalf("no api address in %v", args)
	return ""
}

func TestMergeNetPermission(t *testing.T) {
	const api = "localhost:4000"

	tests := []struct {
		name     string
		flags    []string
		expected []string
	}{
		{"NoFlags", nil, []string{"--allow-net=localhost:4000"}},
		{"OtherFlags", []string{"--allow-read=."}, []string{"--allow-read=.", "--allow-net=localhost:4000"}},
		{"BareAllowNet", []string{"--allow-net", "--allow-read"}, []string{"--allow-net", "--allow-read"}},
		{
			"AllowNetList",
			[]string{"--allow-read", "--allow-net=example.com"},
			[]string{"--allow-read", "--allow-net=localhost:4000,example.com"},
		},
		{
			"OnlyFirstListMerged",
			[]string{"--allow-net=a.com", "--allow-net=b.com"},
			[]string{"--allow-net=localhost:4000,a.com", "--allow-net=b.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := append([]string(nil), tt.flags...)
			assert.Equal(t, tt.expected, MergeNetPermission(tt.flags, api))
			assert.Equal(t, original, tt.flags)
		})
	}
}

func TestCoordinatorRun(t *testing.T) {
	t.Run("ChildArguments", func(t *testing.T) {
		cmdRunner := &MockCommandRunner{}
		coord := NewCoordinator(zaptest.NewLogger(t), &MockSource{},
			WithCommandRunner(cmdRunner),
			WithRuntime("deno", "run"),
			WithRuntimeFlags("--allow-read=."),
		)
		coord.newPassword = func() string { return "pw" }

		code, err := coord.Run(t.Context(), RunOptions{
			Script:       "day_1.ts",
			RuntimeFlags: []string{"--quiet"},
			Submit:       true,
			Time:         true,
		})
		require.NoError(t, err)
		assert.Zero(t, code)

		calls := cmdRunner.calls()
		require.Len(t, calls, 1)
		args := calls[0]
		require.Len(t, args, 9)
		assert.Equal(t, []string{"deno", "run", "--allow-read=.", "--quiet"}, args[:4])
		assert.Regexp(t, `^--allow-net=localhost:\d+$`, args[4])
		assert.Equal(t, "day_1.ts", args[5])
		assert.Regexp(t, `^--aocd-api-addr=http://sandbox:pw@localhost:\d+$`, args[6])
		assert.Equal(t, []string{"--submit", "--time"}, args[7:])
		assert.Equal(t, strings.TrimPrefix(args[4], "--allow-net="), strings.TrimPrefix(args[6], "--aocd-api-addr=http://sandbox:pw@"))
	})

	t.Run("ChildUsesAPIAndExitCodeIsReturned", func(t *testing.T) {
		src := &MockSource{}
		var inputResult string
		var submitErr error
		cmdRunner := &MockCommandRunner{RunFunc: func(ctx context.Context, args []string) (int, error) {
			proxy, err := source.NewProxy(apiAddrArg(t, args), nil)
			if err != nil {
				return 1, err
			}
			inputResult, err = proxy.Input(ctx, 2021, 7)
			if err != nil {
				return 1, err
			}
			_, submitErr = proxy.Submit(ctx, 2021, 7, 1, source.Int(42))
			return 7, nil
		}}
		coord := NewCoordinator(zaptest.NewLogger(t), src, WithCommandRunner(cmdRunner))

		code, err := coord.Run(t.Context(), RunOptions{Script: "day_7.ts"})
		require.NoError(t, err)
		assert.Equal(t, 7, code)

		assert.Equal(t, "input 2021/7\n", inputResult)
		var statusErr *source.StatusError
		require.ErrorAs(t, submitErr, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.Code)
		assert.Empty(t, src.submissions())
	})

	t.Run("SubmitEnabled", func(t *testing.T) {
		src := &MockSource{}
		var correct bool
		cmdRunner := &MockCommandRunner{RunFunc: func(ctx context.Context, args []string) (int, error) {
			proxy, err := source.NewProxy(apiAddrArg(t, args), nil)
			if err != nil {
				return 1, err
			}
			correct, err = proxy.Submit(ctx, 2021, 7, 1, source.Int(42))
			return 0, err
		}}
		coord := NewCoordinator(zaptest.NewLogger(t), src, WithCommandRunner(cmdRunner))

		code, err := coord.Run(t.Context(), RunOptions{Script: "day_7.ts", Submit: true})
		require.NoError(t, err)
		assert.Zero(t, code)
		assert.True(t, correct)
		assert.Equal(t, []source.Answer{source.Int(42)}, src.submissions())
	})

	t.Run("ServerClosedAfterChildExits", func(t *testing.T) {
		var addr string
		cmdRunner := &MockCommandRunner{RunFunc: func(_ context.Context, args []string) (int, error) {
			addr = apiAddrArg(t, args)
			return 0, nil
		}}
		coord := NewCoordinator(zaptest.NewLogger(t), &MockSource{}, WithCommandRunner(cmdRunner))

		_, err := coord.Run(t.Context(), RunOptions{Script: "day_1.ts"})
		require.NoError(t, err)

		proxy, err := source.NewProxy(addr, nil)
		require.NoError(t, err)
		_, err = proxy.Input(t.Context(), 2021, 1)
		require.Error(t, err)
	})

	t.Run("ChildFailsToStart", func(t *testing.T) {
		cmdRunner := &MockCommandRunner{err: errors.New("executable file not found")}
		coord := NewCoordinator(zaptest.NewLogger(t), &MockSource{}, WithCommandRunner(cmdRunner))

		_, err := coord.Run(t.Context(), RunOptions{Script: "day_1.ts"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "executable file not found")
	})

	t.Run("NoScript", func(t *testing.T) {
		cmdRunner := &MockCommandRunner{}
		coord := NewCoordinator(zaptest.NewLogger(t), &MockSource{}, WithCommandRunner(cmdRunner))

		_, err := coord.Run(t.Context(), RunOptions{})
		require.Error(t, err)
		assert.Empty(t, cmdRunner.calls())
	})
}

func TestDayTests(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"day_10.ts", "day_2.ts", "day_1.ts", "day_x.ts", "notes.md", "day_3.ts.bak"} {
		require.NoError(t, afero.WriteFile(fs, "/aoc/"+name, []byte("// test"), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/aoc/day_4.ts", 0o755))

	cmdRunner := &MockCommandRunner{exitCode: 3}
	coord := NewCoordinator(zaptest.NewLogger(t), &MockSource{},
		WithCommandRunner(cmdRunner),
		WithFileSystem(fs),
		WithRuntime("deno", "run"),
		WithTestArgs("test", "--allow-read=."),
	)

	scripts, err := coord.DayScripts("/aoc")
	require.NoError(t, err)
	assert.Equal(t, []string{"/aoc/day_1.ts", "/aoc/day_2.ts", "/aoc/day_10.ts"}, scripts)

	code, err := coord.DayTests(t.Context(), "/aoc", []string{"--fail-fast"})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, [][]string{{
		"deno", "test", "--allow-read=.",
		"/aoc/day_1.ts", "/aoc/day_2.ts", "/aoc/day_10.ts",
		"--fail-fast",
	}}, cmdRunner.calls())

	_, err = coord.DayScripts("/missing")
	require.Error(t, err)
}
