package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func checklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Print the active checklist as YAML",
		Long: `Print the checklist runs are verified against, together with the rule of every
step. Without a configured checklist.path the built-in earbud checklist is printed,
which makes a good starting point for a custom checklist file.`,
		RunE: runChecklist,
	}

	cmd.Flags().String("file", "", "checklist YAML file to validate and print")
	return cmd
}

func runChecklist(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = viper.GetString("checklist.path")
	}

	file := config.DefaultChecklistFile()
	if path != "" {
		data, err := os.ReadFile(config.ExpandPath(path)) //nolint:gosec // user-supplied checklist path
		if err != nil {
			return common.NewUserError(fmt.Sprintf("Failed to read checklist %s", path), err)
		}
		if file, err = config.ParseChecklist(data); err != nil {
			return common.NewUserError("Invalid checklist", err)
		}
		if _, _, err := file.Checklist(); err != nil {
			return common.NewUserError("Invalid checklist", err)
		}
	}

	data, err := config.MarshalChecklist(file)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
