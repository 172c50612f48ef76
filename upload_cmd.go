package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bookkaraoke/kara/internal/session"
)

var pipelineURL string

var uploadCmd = &cobra.Command{
	Use:   "upload SOURCE",
	Short: "Send a source document through the narration pipeline",
	Long: paragraph("\nUploads a document to the pipeline service, follows its progress, " +
		"and stores the finished project in the library."),
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&pipelineURL, "server", "", "pipeline service URL (default from config)")
}

func runUpload(_ *cobra.Command, args []string) error {
	base := pipelineURL
	if base == "" {
		base = viper.GetString("pipeline")
	}
	if base == "" {
		return fmt.Errorf("no pipeline server configured; pass --server or set pipeline in the config")
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.LibraryDir, 0o755); err != nil {
		return fmt.Errorf("creating library directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := session.NewClient(base)

	log.Info("uploading", "file", args[0])
	jobID, err := client.Upload(ctx, args[0])
	if err != nil {
		return err
	}

	log.Info("processing", "job", jobID)
	payload, err := client.Follow(ctx, jobID, func(p session.ProgressEvent) {
		log.Info(p.Message, "step", p.Step, "progress", fmt.Sprintf("%.0f%%", p.Progress*100))
	})
	if err != nil {
		return err
	}

	audioPath, err := client.DownloadAudio(ctx, payload.AudioURL, cfg.LibraryDir)
	if err != nil {
		return err
	}
	// Point the stored payload at the local copy.
	payload.AudioURL = filepath.Base(audioPath)

	dest := filepath.Join(cfg.LibraryDir, slugify(payload.Title)+".kara.json")
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}

	log.Info("project ready", "path", dest)
	return nil
}

// slugify builds a file-name-safe slug from a project title.
func slugify(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return "untitled"
	}
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}
