package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# where downloaded projects are stored
# librarydir: ~/.kara/library

# initial volume (0.0 to 1.0)
volume: 0.8

# initial playback speed
speed: 1.0

# pipeline service for kara upload
# pipeline: http://localhost:8000
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the config file, creating it if missing",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = defaultConfigPath()
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Println("Wrote default config to", path)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		fmt.Println(dimText("# " + path))
		fmt.Print(string(data))
		return nil
	},
}
