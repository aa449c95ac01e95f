// Package initcmder provides the init command for initializing a local
// .playbook directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/playbook/pkg/config"
)

const (
	dirName = ".playbook"
)

const initLongDesc string = `Initialize a new .playbook/ directory in the current working directory.

Creates a local .playbook/ directory that takes precedence over the default
~/.playbook/ directory for the bullet store, the similarity index, and
configuration, and seeds it with a default config.toml.

This is useful for maintaining a separate playbook per project or directory.

Examples:
  playbook init`

const initShortDesc string = "Initialize a local .playbook/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .playbook directory: %w", err)
	}

	if err := seedConfig(dir); err != nil {
		return err
	}

	fmt.Printf("Initialized .playbook directory: %s\n", dir)
	return nil
}

// seedConfig writes a default config.toml unless one already exists.
func seedConfig(dir string) error {
	_, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
