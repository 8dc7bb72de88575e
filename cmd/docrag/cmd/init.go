package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibhup/docrag/internal/config"
	"github.com/vibhup/docrag/internal/output"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a docrag.yaml with default settings to the working directory.

Edit the generated file to point at your model endpoints before
running 'docrag index'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := configPath
			if path == "" {
				path = config.DefaultConfigFile
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			out.Successf("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
