package main

import (
	"fmt"
	"os"

	"hoard-go/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp wires an App for the given command. The caller must defer a.Close().
func newApp(operation string) (*app.App, error) {
	a, err := app.New(operation)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return a, nil
}

// stdoutIsTerminal gates interactive-only hints on stderr. Data written to
// stdout never depends on it.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var rootCmd = &cobra.Command{
	Use:           "hoard",
	Short:         "Synchronize configuration files between machines",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var backupCmd = &cobra.Command{
	Use:   "backup [HOARD...]",
	Short: "Copy changed files from this system into the hoard store",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Backup(args, force)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [HOARD...]",
	Short: "Copy stored files from the hoard store back onto this system",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Restore(args, force)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff HOARD",
	Short: "Show how a hoard's files differ between system and store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp("diff")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Diff(os.Stdout, args[0], verbose); err != nil {
			return err
		}
		if !verbose && stdoutIsTerminal() {
			fmt.Fprintln(os.Stderr, "hint: rerun with -v to include unified diffs")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [HOARD...]",
	Short: "Summarize each hoard's sync state in one line",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("status")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Status(os.Stdout, args)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove operation records that no longer affect conflict detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cleanup")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Cleanup()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d record(s)\n", removed)
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Convert operation records written by old releases to the current format",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("upgrade")
		if err != nil {
			return err
		}
		defer a.Close()

		converted, err := a.Upgrade()
		if err != nil {
			return err
		}
		fmt.Printf("Converted %d record(s)\n", converted)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured hoards",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.List(os.Stdout)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without touching any files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("validate")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Validate(); err != nil {
			return err
		}
		fmt.Println("Configuration OK")
		return nil
	},
}

func init() {
	backupCmd.Flags().Bool("force", false, "Proceed even when another machine's changes would be overwritten")
	restoreCmd.Flags().Bool("force", false, "Proceed even when local changes would be overwritten")
	diffCmd.Flags().BoolP("verbose", "v", false, "Include unified diffs for text files")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
}
