package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/pkg/units"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing mixarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This resolves defaults, the config file and environment overrides into the
values the engine would actually run with. Redirect the output to a file to
create a configuration template:

  mixarr config dump > config.yaml

Configuration can be set via:
  - Config file (./config.yaml, ./configs/config.yaml, /etc/mixarr/config.yaml)
  - Environment variables (MIXARR_SERVER_PORT, MIXARR_RECORDING_ROOT, etc.)
  - Command-line flags (for some options)

Environment variables use the MIXARR_ prefix and underscores for nesting.
Example: server.port -> MIXARR_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations and sizes the way the config file accepts them.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(typ.Field(i).Name)
		}
		result[key] = fieldValue(val.Field(i))
	}
	return result
}

func fieldValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case time.Duration:
		return v.String()
	case units.Size:
		return v.String()
	case units.Duration:
		return v.String()
	}

	switch field.Kind() {
	case reflect.Struct:
		return toMap(field.Interface())
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Struct {
			items := make([]any, field.Len())
			for i := 0; i < field.Len(); i++ {
				items[i] = toMap(field.Index(i).Interface())
			}
			return items
		}
		return field.Interface()
	default:
		return field.Interface()
	}
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# mixarr Configuration File")
	fmt.Println("# =========================")
	fmt.Println("#")
	fmt.Println("# Values reflect the current effective configuration:")
	fmt.Println("# defaults, then the config file, then environment overrides.")
	fmt.Println("# Duration format: 30s, 5m, 1h (retention max_age also takes 30d, 2w)")
	fmt.Println("# Size format: 500MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   MIXARR_SERVER_HOST, MIXARR_SERVER_PORT")
	fmt.Println("#   MIXARR_MEDIA_SERVER_RTSP_ADDRESS, MIXARR_MEDIA_SERVER_API_ADDRESS")
	fmt.Println("#   MIXARR_RECORDING_ROOT, MIXARR_MIXER_ENABLED")
	fmt.Println("#   MIXARR_LOGGING_LEVEL, MIXARR_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
