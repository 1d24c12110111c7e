package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sayantanmandal1/function-dependency-warner/internal/config"
)

// newInitCmd implements `funcwarn init`, which writes a commented starter
// config into a workspace.
func newInitCmd(a *app) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a starter " + config.FileName,
		Long: `Write a commented ` + config.FileName + ` to DIR (default: --root, or the
current directory). An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		// The config being created may not exist or parse yet.
		PersistentPreRunE: func(*cobra.Command, []string) error { return a.setupLogger() },
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				_, err := fmt.Fprint(a.stdout, config.Starter)
				return err
			}

			dir := "."
			if a.flags.root != "" {
				dir = a.flags.root
			}
			if len(args) > 0 {
				dir = args[0]
			}
			path := filepath.Join(dir, config.FileName)
			if err := writeStarter(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stderr, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the config instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}

func writeStarter(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if _, err := f.WriteString(config.Starter); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
