package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/assembly-verify/internal/cli"
	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/sheets"
	"github.com/Veraticus/assembly-verify/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export RUN",
		Short: "Export a run's step table to Google Sheets",
		Long: `Export a persisted run to Google Sheets. RUN is a result file, an output directory
or a key prefix of an indexed run. Each run gets its own tab, which is overwritten when
the same run is exported again.

Authenticate with either a service account key (sheets.service_account_path) or OAuth2
client credentials with a refresh token (sheets.client_id, sheets.client_secret,
sheets.refresh_token). GOOGLE_SHEETS_* environment variables fill unset values.`,
		Example: `  verify export out_session --spreadsheet-id 1AbC...
  verify export 3f2b9c1e`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().String("spreadsheet-id", "", "spreadsheet to export into (default: create a new one)")
	_ = viper.BindPFlag("sheets.spreadsheet_id", cmd.Flags().Lookup("spreadsheet-id"))

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := loadRunArg(cmd, args[0])
	if err != nil {
		return err
	}

	cfg := sheets.DefaultConfig()
	cfg.ClientID = viper.GetString("sheets.client_id")
	cfg.ClientSecret = viper.GetString("sheets.client_secret")
	cfg.RefreshToken = viper.GetString("sheets.refresh_token")
	cfg.ServiceAccountPath = config.ExpandPath(viper.GetString("sheets.service_account_path"))
	cfg.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
	if name := viper.GetString("sheets.spreadsheet_name"); name != "" {
		cfg.SpreadsheetName = name
	}
	cfg.LoadFromEnv()

	writer, err := sheets.NewWriter(ctx, cfg, slog.Default())
	if err != nil {
		return common.NewUserError("Google Sheets is not configured", err)
	}

	spreadsheetID, err := writer.Write(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to export run: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported run %s to tab %q of spreadsheet %s",
		run.ID, sheets.TabTitle(run), spreadsheetID)))
	return nil
}

// loadRunArg loads a run from a result path, or from the index by key prefix.
func loadRunArg(cmd *cobra.Command, arg string) (*model.VerificationRun, error) {
	if path := config.ExpandPath(arg); fileExists(path) {
		run, err := storage.LoadResult(path)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("Failed to load run %s", path), err)
		}
		return run, nil
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	summary, err := resolveRun(cmd, store, arg)
	if err != nil {
		return nil, err
	}
	run, err := store.Load(cmd.Context(), summary.Key)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Failed to load run %s", summary.Key), err)
	}
	return run, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
