package cmd

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/cliparr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing cliparr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows every configuration option after merging defaults, the config
file and environment variables. Redirect the output to a file to create a
configuration template:

  cliparr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .cliparr.yaml, /etc/cliparr/config.yaml)
  - Environment variables (CLIPARR_SERVER_PORT, CLIPARR_REDIS_ADDR, etc.)
  - Command-line flags (for some options)

Environment variables use the CLIPARR_ prefix and underscores for nesting.
Example: server.port -> CLIPARR_SERVER_PORT`,
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
			result[key] = v.String()
		case config.ByteSize:
			result[key] = v.String()
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
	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# cliparr Configuration File")
	fmt.Println("# ===========================")
	fmt.Println("#")
	fmt.Println("# Values reflect the currently effective configuration.")
	fmt.Println("# Duration format: 30s, 5m, 1h, 30d")
	fmt.Println("# Size format: 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   CLIPARR_SERVER_HOST, CLIPARR_SERVER_PORT")
	fmt.Println("#   CLIPARR_REDIS_ADDR, CLIPARR_REDIS_QUEUE")
	fmt.Println("#   CLIPARR_DATABASE_DRIVER, CLIPARR_DATABASE_DSN")
	fmt.Println("#   CLIPARR_STORAGE_OUTPUT_DIR, CLIPARR_STORAGE_TEMP_DIR")
	fmt.Println("#   CLIPARR_LOGGING_LEVEL, CLIPARR_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
