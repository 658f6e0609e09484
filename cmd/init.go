/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"

	"github.com/jacobarthurs/pgplanviz/internal/profile"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with example template",
	Long: `Create the pgplanviz config file (config.yaml in your user config directory,
e.g. ~/.config/pgplanviz/config.yaml) with an example template.

The config file stores named database connection profiles so you don't need
to pass connection strings on every invocation, plus the badge thresholds and
graph layout. If a config file already exists, it will not be overwritten
unless --force is given.`,
	Example: `  # Create default config
  pgplanviz init

  # Overwrite existing config
  pgplanviz init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := profile.Init(force)
		if err != nil {
			return err
		}

		fmt.Printf("Created config at %s\n", path)
		fmt.Println("Edit the profiles section or run 'pgplanviz profile add <name> <conn_str>'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config file")
}
