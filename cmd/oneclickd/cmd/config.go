package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/config"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/pkg/bytesize"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing oneclickd configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all available configuration options with their current values,
including defaults, config file settings, and environment overrides.
You can redirect this output to a file to create a configuration template:

  oneclickd config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/oneclickd, $HOME/.oneclickd)
  - Environment variables (ONECLICK_SERVER_PORT, ONECLICK_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the ONECLICK_ prefix and underscores for nesting.
Example: server.port -> ONECLICK_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case config.Duration:
			result[key] = duration.Format(v.Duration())
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(v.Bytes()))
		case time.Duration:
			result[key] = duration.Format(v)
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# oneclickd Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# Duration format: 30s, 5m, 1h, 30d")
	fmt.Println("# Size format: 100KB, 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   ONECLICK_SERVER_HOST, ONECLICK_SERVER_PORT")
	fmt.Println("#   ONECLICK_DATABASE_DRIVER, ONECLICK_DATABASE_DSN")
	fmt.Println("#   ONECLICK_STORAGE_BASE_DIR, ONECLICK_STORAGE_COOKIE_JAR")
	fmt.Println("#   ONECLICK_DOWNLOAD_LOCK_EXPIRY, ONECLICK_DOWNLOAD_QUALITY")
	fmt.Println("#   ONECLICK_LOGGING_LEVEL, ONECLICK_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
