package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage screencap configuration",
	Long:  `View and create the screencap configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective capture settings",
	Long: `Display the settings a capture command would run with after merging
defaults, the config file and SCREENCAP_ environment variables. Flags given
to a capture command override these.`,
	Example: `  # Show settings as YAML (default)
  screencap config show

  # Show settings as JSON
  screencap config show --format json`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE:  runConfigInit,
}

var (
	formatFlag string
	forceFlag  bool
)

// fileConfig is the config file layout. Keys match the capture flags.
type fileConfig struct {
	FPS        uint32   `json:"fps" yaml:"fps"`
	Cursor     bool     `json:"cursor" yaml:"cursor"`
	Highlight  bool     `json:"highlight" yaml:"highlight"`
	Format     string   `json:"format" yaml:"format"`
	Resolution string   `json:"resolution" yaml:"resolution"`
	Crop       string   `json:"crop,omitempty" yaml:"crop,omitempty"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Exclude    []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Audio      bool     `json:"audio" yaml:"audio"`
	LogLevel   string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
	configInitCmd.Flags().BoolVar(&forceFlag, "force", false, "overwrite an existing file")
}

func effectiveConfig(v *viper.Viper) fileConfig {
	exclude := v.GetStringSlice("exclude")
	if len(exclude) == 0 {
		exclude = nil
	}
	return fileConfig{
		FPS:        v.GetUint32("fps"),
		Cursor:     v.GetBool("cursor"),
		Highlight:  v.GetBool("highlight"),
		Format:     v.GetString("format"),
		Resolution: v.GetString("resolution"),
		Crop:       v.GetString("crop"),
		Target:     v.GetString("target"),
		Exclude:    exclude,
		Audio:      v.GetBool("audio"),
		LogLevel:   v.GetString("log_level"),
	}
}

func defaultConfig() fileConfig {
	return fileConfig{
		FPS:        60,
		Cursor:     true,
		Format:     "bgra",
		Resolution: "captured",
	}
}

// setDefaults seeds v with defaultConfig so commands without capture flags
// still see the defaults.
func setDefaults(v *viper.Viper) {
	d := defaultConfig()
	v.SetDefault("fps", d.FPS)
	v.SetDefault("cursor", d.Cursor)
	v.SetDefault("format", d.Format)
	v.SetDefault("resolution", d.Resolution)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig(viper.GetViper())

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func configPath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "screencap", "config.yaml"), nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	p, err := configPath()
	if err != nil {
		return err
	}
	fmt.Println(p)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	p, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil && !forceFlag {
		return fmt.Errorf("%s already exists (use --force to overwrite)", p)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", p)
	return nil
}
