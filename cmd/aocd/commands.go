package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/aocd/mcpserver"
	"github.com/isdmx/aocd/sandbox"
	"github.com/isdmx/aocd/source"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aocd",
		Short:         "Fetch Advent of Code inputs, submit answers and run solutions safely",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing aocd.yaml")

	cmd.AddCommand(
		NewSetCookieCmd(),
		NewClearDataCmd(),
		NewGetInputCmd(),
		NewSubmitCmd(),
		NewSafeRunCmd(),
		NewTestCmd(),
		NewMCPCmd(),
		NewConfigCmd(),
	)

	return cmd
}

func NewSetCookieCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-cookie <session-cookie>",
		Short: "Store the Advent of Code session cookie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				return d.Direct.SetSession(ctx, args[0])
			})
		},
	}
}

func NewClearDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-data",
		Short: "Delete the stored session cookie and all cached inputs and answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				return d.Direct.ClearData(ctx)
			})
		},
	}
}

func NewGetInputCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-input <year> <day>",
		Short: "Print the puzzle input for a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseInts(args, "year", "day")
			if err != nil {
				return err
			}
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				input, err := d.Direct.Input(ctx, nums[0], nums[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), input)
				return err
			})
		},
	}
}

func NewSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <year> <day> <part> <answer>",
		Short: "Submit an answer and report whether it is correct",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseInts(args[:3], "year", "day", "part")
			if err != nil {
				return err
			}
			answer := source.ParseAnswer(args[3])
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				correct, err := d.Direct.Submit(ctx, nums[0], nums[1], nums[2], answer)
				if err != nil {
					return err
				}
				verdict := "wrong."
				if correct {
					verdict = "correct!"
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "The answer has been submitted and it is %s\n", verdict)
				return err
			})
		},
	}
}

func NewSafeRunCmd() *cobra.Command {
	var opts sandbox.RunOptions

	cmd := &cobra.Command{
		Use:   "safe-run <script>",
		Short: "Run a solution script without giving it access to the session cookie",
		Long: "Run a solution script in the configured runtime with network access limited to a\n" +
			"local API that serves puzzle inputs and, with --submit, accepts answers.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Script = args[0]
			flags, err := runtimeFlags(cmd)
			if err != nil {
				return err
			}
			opts.RuntimeFlags = flags
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				code, err := d.Coordinator.Run(ctx, opts)
				if err != nil {
					return err
				}
				return exitWith(code)
			})
		},
	}

	cmd.Flags().String("runtime-flags", "", "Extra flags passed to the runtime, separated by spaces")
	cmd.Flags().BoolVarP(&opts.Submit, "submit", "s", false, "Allow the script to submit answers")
	cmd.Flags().BoolVar(&opts.Time, "time", false, "Report how long each part takes")

	return cmd
}

// runtimeFlags splits --runtime-flags on whitespace. Commas belong to the
// flag values, as in --allow-net=a.com,b.com.
func runtimeFlags(cmd *cobra.Command) ([]string, error) {
	raw, err := cmd.Flags().GetString("runtime-flags")
	if err != nil {
		return nil, err
	}
	return strings.Fields(raw), nil
}

func NewTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "test [runtime test args...]",
		Short:              "Run the tests of every day_<N> script in the current directory",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd, func(ctx context.Context, d deps) error {
				code, err := d.Coordinator.DayTests(ctx, ".", args)
				if err != nil {
					return err
				}
				return exitWith(code)
			})
		},
	}
}

func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve puzzle inputs and answer submission over the Model Context Protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var server *mcpserver.MCPServer
			return runApp(cmd, fx.Populate(&server), func(context.Context) error {
				return server.Serve()
			})
		},
	}
}

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func parseInts(args []string, names ...string) ([]int, error) {
	nums := make([]int, len(args))
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: must be an integer", names[i], arg)
		}
		nums[i] = n
	}
	return nums, nil
}
