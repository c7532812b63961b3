package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/cli"
	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/storage"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and inspect persisted runs",
		RunE:  runListRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show the step table of a run (a unique key prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowRun,
	}
	showCmd.Flags().Bool("narratives", false, "also print the narration recorded at each evidence frame")
	cmd.AddCommand(showCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "forget KEY",
		Short: "Remove a run from the index; its result file is left in place",
		Args:  cobra.ExactArgs(1),
		RunE:  runForgetRun,
	})

	return cmd
}

func runListRuns(cmd *cobra.Command, _ []string) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	runs, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return cli.RenderRuns(os.Stdout, runs)
}

func runShowRun(cmd *cobra.Command, args []string) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	summary, err := resolveRun(cmd, store, args[0])
	if err != nil {
		return err
	}

	run, err := store.Load(cmd.Context(), summary.Key)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("Failed to load run %s", summary.Key), err)
	}

	if err := cli.RenderSteps(os.Stdout, run); err != nil {
		return err
	}
	if narratives, _ := cmd.Flags().GetBool("narratives"); narratives {
		fmt.Println()
		if err := cli.RenderNarratives(os.Stdout, run); err != nil {
			return err
		}
	}
	if len(run.Comparison) > 0 {
		fmt.Println()
		return cli.RenderComparison(os.Stdout, run.GoldenPath, run.Comparison)
	}
	return nil
}

func runForgetRun(cmd *cobra.Command, args []string) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	summary, err := resolveRun(cmd, store, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteRun(cmd.Context(), summary.Key); err != nil {
		return fmt.Errorf("failed to forget run: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Forgot run %s (%s is kept)", summary.Key, summary.ResultPath)))
	return nil
}

// resolveRun finds the indexed run whose key starts with prefix.
func resolveRun(cmd *cobra.Command, store *storage.SQLiteStorage, prefix string) (model.RunSummary, error) {
	runs, err := store.List(cmd.Context())
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to list runs: %w", err)
	}

	var matches []model.RunSummary
	for _, r := range runs {
		if strings.HasPrefix(r.Key, prefix) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return model.RunSummary{}, common.NewUserError(fmt.Sprintf("No run matches %q", prefix), common.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.RunSummary{}, common.NewUserError(fmt.Sprintf("%d runs match %q; use a longer key", len(matches), prefix), nil)
	}
}

func closeStore(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}
