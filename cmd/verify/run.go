package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/cli"
	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/Veraticus/assembly-verify/internal/frames"
	"github.com/Veraticus/assembly-verify/internal/llm"
	"github.com/Veraticus/assembly-verify/internal/pipeline"
	"github.com/Veraticus/assembly-verify/internal/service"
	"github.com/Veraticus/assembly-verify/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify an assembly video against the checklist",
		Long: `Sample the video, observe every sampled frame and record which checklist steps
were performed. The result is written to <out>/verification_result.json.

A second run with the same video and output directory reuses the persisted result
without observing any frame again, even if the video has changed since. Use a fresh
output directory to force a new run.

The video may also be a directory of already extracted frame images.`,
		Example: `  verify run --video session.mp4
  verify run --video session.mp4 --out runs/session --stride 4 --use-api
  verify run --video session.mp4 --golden runs/reference`,
		RunE: runVerify,
	}

	cmd.Flags().String("video", "", "video file or frame directory to verify (required)")
	cmd.Flags().String("out", "", "output directory (default: out_<video name>)")
	cmd.Flags().Int("stride", 0, "sample every Nth video frame (default: frames.stride)")
	cmd.Flags().Bool("use-api", false, "narrate frames with the configured provider instead of the simulated narrator")
	cmd.Flags().String("golden", "", "golden run (result file or output directory) to compare against")
	cmd.Flags().String("checklist", "", "checklist YAML file (default: built-in earbud checklist)")
	cmd.Flags().String("policy", "", "preparation policy: cumulative or frame (default: engine.preparation_policy)")
	cmd.Flags().Bool("no-annotate", false, "do not render annotated evidence frames")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	_ = cmd.MarkFlagRequired("video")

	// Bind flags to viper
	_ = viper.BindPFlag("frames.stride", cmd.Flags().Lookup("stride"))
	_ = viper.BindPFlag("narrator.use_api", cmd.Flags().Lookup("use-api"))
	_ = viper.BindPFlag("checklist.path", cmd.Flags().Lookup("checklist"))
	_ = viper.BindPFlag("engine.preparation_policy", cmd.Flags().Lookup("policy"))

	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	video, _ := cmd.Flags().GetString("video")
	out, _ := cmd.Flags().GetString("out")
	golden, _ := cmd.Flags().GetString("golden")
	noAnnotate, _ := cmd.Flags().GetBool("no-annotate")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	video = config.ExpandPath(video)
	if out == "" {
		out = defaultOutputDir(video)
	}
	out = config.ExpandPath(out)
	if golden != "" {
		golden = config.ExpandPath(golden)
	}

	identity, err := storage.NewIdentity(video, out)
	if err != nil {
		return err
	}

	checklist, rules, err := config.LoadChecklist(viper.GetString("checklist.path"))
	if err != nil {
		return common.NewUserError("Failed to load checklist", err)
	}
	policy, err := preparationPolicy()
	if err != nil {
		return common.NewUserError("Invalid configuration", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	narratorCfg, err := narratorConfig(viper.GetBool("narrator.use_api"))
	if err != nil {
		return common.NewUserError("Narrator is not configured", err)
	}
	narrator, err := llm.Open(narratorCfg, slog.Default())
	if err != nil {
		return common.NewUserError("Failed to start narrator", err)
	}
	defer func() {
		if err := narrator.Close(); err != nil {
			slog.Error("Failed to close narrator", "error", err)
		}
	}()

	det, err := createDetector()
	if err != nil {
		return common.NewUserError("Failed to create detector", err)
	}

	var progress *cli.FrameProgress
	pipelineCfg := pipeline.Config{
		Logger:          slog.Default(),
		Checklist:       checklist,
		Rules:           rules,
		Policy:          policy,
		OrderCheck:      viper.GetBool("engine.order_check"),
		ObserverTimeout: viper.GetDuration("pipeline.observer_timeout"),
		Annotate:        viper.GetBool("pipeline.annotate") && !noAnnotate,
		OnFrame: func(p pipeline.Progress) {
			if noProgress {
				return
			}
			if progress == nil {
				progress = cli.NewFrameProgress(os.Stderr)
			}
			progress.Frame(p.Processed, p.Total, p.Observation.Degraded)
		},
	}

	p, err := pipeline.New(det, narrator, pipelineCfg)
	if err != nil {
		return common.NewUserError("Invalid pipeline configuration", err)
	}

	if err := os.MkdirAll(identity.OutputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	handler := cli.NewInterruptHandler(os.Stderr)
	ctx = handler.HandleInterrupts(ctx, fmt.Sprintf("Extracted frames are kept in %s",
		filepath.Join(identity.OutputDir, frames.FramesDir)))

	slog.Info("Starting verification",
		"video", identity.VideoPath,
		"out", identity.OutputDir,
		"narrator", narrator.Provider(),
		"policy", policy)

	req := pipeline.Request{
		Open: func(ctx context.Context) (service.FrameSource, error) {
			src, err := frames.Open(ctx, identity.VideoPath, identity.OutputDir, frameOptions())
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		Video:      identity.VideoPath,
		OutputDir:  identity.OutputDir,
		GoldenPath: golden,
	}

	run, cached, err := store.RunOrLoad(ctx, identity, p.RunFunc(req))
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		switch {
		case handler.WasInterrupted():
			return common.NewUserError("Verification interrupted", err)
		case errors.Is(err, common.ErrSourceUnavailable):
			return common.NewUserError(fmt.Sprintf("Cannot open video %s", identity.VideoPath), err)
		case errors.Is(err, common.ErrCacheCorruption):
			return common.NewUserError(fmt.Sprintf("The persisted run in %s is corrupted; remove it or choose another --out", identity.OutputDir), err)
		case errors.Is(err, common.ErrOutputInUse):
			return common.NewUserError(fmt.Sprintf("%s already holds the run of another video; choose another --out", identity.OutputDir), err)
		default:
			return err
		}
	}

	if cached {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Reusing the persisted run from %s", run.CreatedAt.Local().Format("2006-01-02 15:04"))))
		if golden != "" && run.GoldenPath != golden {
			// Shown only; the persisted run stays as it was computed.
			pipeline.AttachGolden(run, golden, slog.Default())
		}
	}

	if err := cli.RenderSteps(os.Stdout, run); err != nil {
		return err
	}
	if len(run.Comparison) > 0 {
		fmt.Println()
		if err := cli.RenderComparison(os.Stdout, run.GoldenPath, run.Comparison); err != nil {
			return err
		}
	} else if golden != "" {
		fmt.Println(cli.FormatWarning("Golden comparison skipped; see the log for the reason"))
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Result written to %s", identity.ResultPath())))
	return nil
}

// defaultOutputDir derives out_<name> next to the working directory from the video name.
func defaultOutputDir(video string) string {
	name := filepath.Base(strings.TrimRight(video, string(filepath.Separator)))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return "out_" + name
}
