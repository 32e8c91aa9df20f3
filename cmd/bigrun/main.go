// Package main is the entry point for the bigrun command.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/bigrun/pkg/runtime"
	"github.com/lemonberrylabs/bigrun/pkg/stdlib"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "bigrun [file.big] [args...]",
	Short: "Runs .big scripts",
	Long:  "bigrun runs .big scripts, explains their keywords and serves them over HTTP.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return exitCode(runScript(os.Stdout, os.Stdin, args[0], args[1:], false, false))
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <file.big> [args...]",
	Short: "Run a script",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		heal, _ := cmd.Flags().GetBool("heal")
		return exitCode(runScript(os.Stdout, os.Stdin, args[0], args[1:], debug, heal))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bigrun version %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("bigrun version {{.Version}}\n")
	rootCmd.Flags().SetInterspersed(false)

	runCmd.Flags().Bool("debug", false, "Trace execution and log variable changes")
	runCmd.Flags().Bool("heal", false, "Close loop blocks that are missing a keep")
	runCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(runCmd, versionCmd, tokensCmd, showCmd, whatisCmd, replCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// exitCode ends the process on a failed run. The script has already
// reported its own failure.
func exitCode(code int) error {
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runScript runs the script at path and returns the process exit status.
// A trailing --debug or --heal among the script arguments is honoured so
// "bigrun app.big --debug" behaves like "bigrun run --debug app.big".
func runScript(out io.Writer, in io.Reader, path string, args []string, debug, heal bool) int {
	if filepath.Ext(path) != ".big" {
		fmt.Fprintln(out, "Big Error: I only speak .big! Please provide a valid file.")
		return 1
	}
	args, debug, heal = extractFlags(args, debug, heal)
	if debug {
		log.Println("Debug mode enabled. Tracing execution...")
	}

	interp := runtime.New(runtime.Options{
		Stdout: out,
		Stdin:  in,
		Args:   args,
		Verbs:  stdlib.NewRegistry(),
		Debug:  debug,
		Heal:   heal,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	halt := interp.RunFile(ctx, path)
	interp.Wait()
	if halt == nil {
		return 0
	}
	if halt.HasTag(types.TagNotFound) {
		fmt.Fprintf(out, "Big Error: %s\n", halt.Message)
	}
	return 1
}

func extractFlags(args []string, debug, heal bool) ([]string, bool, bool) {
	rest := args[:0:0]
	for _, a := range args {
		switch a {
		case "--debug":
			debug = true
		case "--heal":
			heal = true
		default:
			rest = append(rest, a)
		}
	}
	return rest, debug, heal
}
