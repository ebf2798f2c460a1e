// Package config layers TOML files, environment variables and CLI
// flags into plain options structs, and hot-reloads watched files.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/multistream/internal/logging"
)

// envPrefix namespaces every environment override.
const envPrefix = "MULTISTREAM_"

// fieldSpec ties one options-struct field to the three places a value
// for it can come from.
type fieldSpec struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

// LoadConfig fills an options struct with proper precedence:
// CLI flags > environment variables > TOML config file.
// Fields already set on the command line are never overwritten by the
// lower-precedence sources.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields := structFields(opts)
	locked := lockedFlags(cmd)

	if path := configFilePath(opts); path != "" {
		tree, err := readTOMLFile(path)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if locked[f.flag] || f.toml == "" {
				continue
			}
			if value := getNestedValue(tree, f.toml); value != nil {
				fromTOML(f.value, value)
			}
		}
	}

	for _, f := range fields {
		if locked[f.flag] || f.env == "" {
			continue
		}
		if raw := os.Getenv(envPrefix + f.env); raw != "" {
			fromEnv(f.value, raw)
		}
	}

	return nil
}

func structFields(opts any) []fieldSpec {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	specs := make([]fieldSpec, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		specs = append(specs, fieldSpec{
			value: v.Field(i),
			flag:  fieldNameToFlag(f.Name),
			toml:  f.Tag.Get("toml"),
			env:   f.Tag.Get("env"),
		})
	}
	return specs
}

// lockedFlags names the flags the user set explicitly. pflag's Visit
// walks only changed flags.
func lockedFlags(cmd *cobra.Command) map[string]bool {
	locked := make(map[string]bool)
	if cmd == nil {
		return locked
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		locked[f.Name] = true
	})
	return locked
}

// configFilePath reads the Config field, which names the TOML file
// itself and so can only arrive via flag or default.
func configFilePath(opts any) string {
	f := reflect.ValueOf(opts).Elem().FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// readTOMLFile parses path into a raw tree. A missing file is not an
// error; a file that exists but does not parse is.
func readTOMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return tree, nil
}

// fieldNameToFlag converts a struct field name to its CLI flag name.
// Example: "EngineHost" -> "engine-host", "Port" -> "port".
func fieldNameToFlag(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getNestedValue walks dot-separated keys through nested TOML tables.
func getNestedValue(data map[string]any, path string) any {
	keys := strings.Split(path, ".")
	for _, key := range keys[:len(keys)-1] {
		sub, ok := data[key].(map[string]any)
		if !ok {
			return nil
		}
		data = sub
	}
	return data[keys[len(keys)-1]]
}

// fromTOML assigns a decoded TOML value to a field. go-toml hands back
// native Go types, so no string parsing happens here.
func fromTOML(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, ok := value.(int64); ok {
			field.SetInt(n)
		}
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// fromEnv parses an environment string into a field. Slices split on
// commas with surrounding whitespace trimmed.
func fromEnv(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.Atoi(raw); err == nil {
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(raw, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig reads the [logging] table from a TOML config file.
// level and format are reserved keys; every other key names a module
// and its level. Missing or unparsable files yield the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var file struct {
		Logging map[string]string `toml:"logging"`
	}
	if toml.Unmarshal(data, &file) != nil {
		return cfg
	}

	for key, value := range file.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
