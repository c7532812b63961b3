package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Veraticus/assembly-verify/internal/cli"
	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/compare"
	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/Veraticus/assembly-verify/internal/storage"
	"github.com/spf13/cobra"
)

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare TEST GOLDEN",
		Short: "Compare a persisted run against a golden run",
		Long: `Compare two persisted runs. Each argument is a verification_result.json file or
the output directory holding one. Every step of the golden run is reported, with the
test run's status for it.`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	cmd.Flags().Bool("json", false, "print the comparison records as JSON")
	cmd.Flags().Bool("strict", false, "exit non-zero unless every golden step is done")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")

	testPath := config.ExpandPath(args[0])
	goldenPath := config.ExpandPath(args[1])

	test, err := storage.LoadResult(testPath)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("Failed to load run %s", testPath), err)
	}
	golden, err := storage.LoadResult(goldenPath)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("Failed to load golden run %s", goldenPath), err)
	}

	if err := compare.CheckCompatible(test, golden); err != nil {
		return common.NewUserError("The runs were verified against different checklists", err)
	}

	records := compare.Compare(test, golden)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode comparison: %w", err)
		}
	} else if err := cli.RenderComparison(os.Stdout, goldenPath, records); err != nil {
		return err
	}

	if strict && !compare.Summarize(records).Passed() {
		return common.NewUserError("Comparison failed", nil)
	}
	return nil
}
