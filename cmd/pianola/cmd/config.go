package cmd

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/pianola/internal/config"
	"github.com/jmylchreest/pianola/pkg/duration"
)

var configDumpEffective bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing pianola configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the configuration",
	Long: `Dump the default configuration values in YAML format.

Redirect the output to a file to create a configuration template:

  pianola config dump > config.yaml

With --effective the merged configuration (defaults, config file and
environment) is printed instead, with secrets masked.

Environment variables use the PIANOLA_ prefix and underscores for nesting.
Example: catalog.base_url -> PIANOLA_CATALOG_BASE_URL`,
	RunE: runConfigDump,
}

func init() {
	configDumpCmd.Flags().BoolVar(&configDumpEffective, "effective", false, "dump the merged configuration instead of the defaults")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// secretKeys are masked in effective dumps.
var secretKeys = []string{"auth_token", "dsn"}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations in their human form.
func toMap(v any, mask bool) map[string]any {
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
			key = strings.ToLower(fieldType.Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case config.Duration:
			result[key] = duration.Format(v.Duration())
		case string:
			if mask && v != "" && slices.Contains(secretKeys, key) {
				result[key] = "********"
			} else {
				result[key] = v
			}
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface(), mask)
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configDumpEffective {
		cfg, err = loadConfig()
	} else {
		v := viper.New()
		config.SetDefaults(v)
		cfg, err = config.FromViper(v)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	return writeConfig(cmd.OutOrStdout(), cfg, configDumpEffective)
}

func writeConfig(w io.Writer, cfg *config.Config, effective bool) error {
	yamlData, err := yaml.Marshal(toMap(cfg, effective))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	header := []string{
		"# pianola Configuration File",
		"# ==========================",
		"#",
	}
	if effective {
		header = append(header, "# Effective values (defaults, config file and environment).")
	} else {
		header = append(header, "# All values shown below are defaults.")
	}
	header = append(header,
		"# Duration format: 30s, 5m, 1h, 30d",
		"#",
		"# Environment variable overrides:",
		"#   PIANOLA_SERVER_HOST, PIANOLA_SERVER_PORT",
		"#   PIANOLA_DATABASE_DRIVER, PIANOLA_DATABASE_DSN",
		"#   PIANOLA_CATALOG_BASE_URL, PIANOLA_CATALOG_AUTH_TOKEN",
		"#   PIANOLA_LOGGING_LEVEL, PIANOLA_LOGGING_FORMAT",
		"#",
		"",
	)
	if _, err := fmt.Fprintln(w, strings.Join(header, "\n")); err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}
