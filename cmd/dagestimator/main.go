package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const VERSION = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "dagestimator",
		Short:         "Estimate instruction-level parallelism of compiled routines",
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "./"+defaultConfigName, "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newHealthCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version and exit",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "dagestimator v%s\n", VERSION)
			},
		},
	)
	return rootCmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "analyze [input]",
		Short: "Analyze a program once and write the configured outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts, firstArg(args), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.analyze(cmd.Context(), cmd.OutOrStdout(), jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the JSON report to stdout instead of the table")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [input]",
		Short: "Re-analyze whenever the input or the config file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts, firstArg(args), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored analysis runs",
	}

	var (
		project string
		limit   int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest runs of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.listRuns(cmd.Context(), cmd.OutOrStdout(), project, limit)
		},
	}
	listCmd.Flags().StringVar(&project, "project", "", "Project key (defaults to [history] project)")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs, 0 for all")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the regions of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.showRun(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report frontend, input and history status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.health(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
