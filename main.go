// Package main provides the entry point for the kara CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/bookkaraoke/kara/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	teleprompter bool
	volume       float64
	speed        float64
	mouse        bool

	rootCmd = &cobra.Command{
		Use:   "kara [PROJECT]",
		Short: "Play book-karaoke projects in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nPlay narrated books with %s word highlighting, a teleprompter view, and transcript search.", keyword("live")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

var (
	keyword = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Render
	dimText = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render
)

// paragraph wraps help text the way the terminal expects.
func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

// validateOptions checks flags and the terminal before launching.
func validateOptions(cmd *cobra.Command) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %v", volume)
	}
	if speed < 0.25 || speed > 4 {
		return fmt.Errorf("speed must be between 0.25 and 4.0, got %v", speed)
	}
	if !isCompletionOrHelp(cmd) && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("kara needs an interactive terminal")
	}
	return nil
}

func isCompletionOrHelp(cmd *cobra.Command) bool {
	name := cmd.Name()
	return name == "help" || name == "completion" || name == "config" || name == "upload"
}

func execute(_ *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Path = args[0]
	}
	cfg.Teleprompter = teleprompter
	cfg.Volume = volume
	cfg.Speed = speed
	cfg.EnableMouse = mouse

	if err := ui.Run(cfg); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// buildConfig layers defaults, the config file and the environment.
func buildConfig() (ui.Config, error) {
	var cfg ui.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.LibraryDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("finding home directory: %w", err)
		}
		cfg.LibraryDir = filepath.Join(home, ".kara", "library")
	}
	return cfg, nil
}

// scope resolves platform config paths.
var scope = gap.NewScope(gap.User, "kara")

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		configPath, err := scope.ConfigPath("kara.yml")
		if err == nil {
			viper.SetConfigFile(configPath)
		}
	}
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("kara")
	viper.AutomaticEnv()

	viper.SetDefault("librarydir", "")
	viper.SetDefault("volume", 0.8)
	viper.SetDefault("speed", 1.0)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			log.Warn("could not read config", "err", err)
		}
	}
}

func main() {
	setupLog()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLog() {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	if lvl := os.Getenv("KARA_LOG_LEVEL"); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			log.SetLevel(parsed)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default "+strings.Replace(defaultConfigPath(), os.Getenv("HOME"), "~", 1)+")")
	rootCmd.Flags().BoolVarP(&teleprompter, "teleprompter", "t", false, "start in the teleprompter view")
	rootCmd.Flags().Float64VarP(&volume, "volume", "v", 0.8, "initial volume (0.0 to 1.0)")
	rootCmd.Flags().Float64VarP(&speed, "speed", "s", 1.0, "initial playback speed")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel scrolling")

	rootCmd.AddCommand(configCmd, uploadCmd)
}

func defaultConfigPath() string {
	p, err := scope.ConfigPath("kara.yml")
	if err != nil {
		return "kara.yml"
	}
	return p
}
