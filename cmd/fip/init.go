package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"fip/internal/config"
	"fip/internal/paths"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialise the .fip state directory",
	Long: `Create the .fip state directory with a default config.json and the
findings directory producers drop their reports into. An existing config is
kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config.json")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return fmt.Errorf("resolve repository root: %w", err)
	}
	layout := paths.For(root)
	if err := layout.Ensure(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, statErr := os.Stat(layout.Config())
	switch {
	case statErr == nil && !initForce:
		fmt.Fprintf(out, "%s already exists; use --force to overwrite.\n", layout.Config())
		return nil
	case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
		return statErr
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(out, "%s Initialised %s\n", green("✓"), layout.Dir())
	fmt.Fprintf(out, "Drop producer reports (JSON or YAML) into %s and run %s.\n", layout.Findings(), cyan("fip scan"))
	return nil
}
