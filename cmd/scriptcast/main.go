package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/pipeline"
	"github.com/eegflow/scriptcast/internal/script"
	srv "github.com/eegflow/scriptcast/internal/server"
	"github.com/eegflow/scriptcast/internal/telemetry"
	"github.com/eegflow/scriptcast/internal/video"
	"github.com/eegflow/scriptcast/provider/lmstudio"
	"github.com/eegflow/scriptcast/provider/voicevox"
)

func main() {
	var cfgPath string
	root := &cobra.Command{Use: "scriptcast"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("SCRIPTCAST_HTTP_ADDR")
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address")

	var source string
	var outDir string
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.General.WorkDir
			}
			ctx := cmd.Context()
			chat := lmstudio.New(cfg.LMStudio)
			if err := chat.EnsureReady(ctx); err != nil {
				return fmt.Errorf("model server not ready: %w", err)
			}
			speech := voicevox.New(cfg.Voicevox)
			metrics := telemetry.NewMetrics(nil)
			pipe := pipeline.New(cfg, chat, speech, nil, nil, metrics, outDir)
			videoPath, err := pipe.RunOnce(ctx, source)
			if err != nil {
				return err
			}
			fmt.Println(videoPath)
			return nil
		},
	}
	run.Flags().StringVar(&source, "source", pipeline.SourceWiki, "content source: wiki, paper, or github")
	run.Flags().StringVar(&outDir, "out", "", "output directory (defaults to general.work_dir)")

	var workDir string
	assemble := &cobra.Command{
		Use:   "assemble",
		Short: "Re-render the video from an existing work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			doc, err := script.Load(filepath.Join(workDir, "script.json"))
			if err != nil {
				return err
			}
			segments, err := video.LoadSegments(filepath.Join(workDir, "audio"))
			if err != nil {
				return err
			}
			outPath := filepath.Join(workDir, "video.mp4")
			asm := video.NewAssembler(cfg.Video)
			if err := asm.Assemble(cmd.Context(), doc, segments, workDir, outPath); err != nil {
				return err
			}
			fmt.Println(outPath)
			return nil
		},
	}
	assemble.Flags().StringVar(&workDir, "work-dir", "", "work directory with script.json and audio/")
	_ = assemble.MarkFlagRequired("work-dir")

	var migDir, direction string
	var steps int
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(serve, run, assemble, migrateCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
