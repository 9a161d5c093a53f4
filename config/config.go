package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"panelbase/units"
)

const (
	KeyServerHost       = "server.host"
	KeyServerPort       = "server.port"
	KeyDatabasePath     = "database.path"
	KeyImportSource     = "import.default_source"
	KeyImportLengthUnit = "import.default_length_unit"
	KeyImportWeightUnit = "import.default_weight_unit"
	KeyExportFormat     = "export.default_format"
	KeyFlagsAutoResolve = "flags.auto_resolve_after_import"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Import   ImportConfig   `mapstructure:"import"`
	Export   ExportConfig   `mapstructure:"export"`
	Flags    FlagsConfig    `mapstructure:"flags"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type ImportConfig struct {
	// DefaultSource labels price-history rows written by imports.
	DefaultSource string `mapstructure:"default_source"`
	// Default units applied when a column header carries no unit hint.
	DefaultLengthUnit string `mapstructure:"default_length_unit"`
	DefaultWeightUnit string `mapstructure:"default_weight_unit"`
}

type ExportConfig struct {
	DefaultFormat string `mapstructure:"default_format"`
}

type FlagsConfig struct {
	AutoResolveAfterImport bool `mapstructure:"auto_resolve_after_import"`
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# panelbase configuration
server:
  host: "127.0.0.1"
  port: 8090

database:
  path: "panelbase.db"

import:
  default_source: "csv_import"
  default_length_unit: "in"
  default_weight_unit: "lb"

export:
  default_format: "csv"

flags:
  auto_resolve_after_import: true
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validateUnits(cfg.Import); err != nil {
		return nil, err
	}
	if err := validateExport(cfg.Export); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerHost, "127.0.0.1")
	v.SetDefault(KeyServerPort, 8090)
	v.SetDefault(KeyDatabasePath, "panelbase.db")
	v.SetDefault(KeyImportSource, "csv_import")
	v.SetDefault(KeyImportLengthUnit, "in")
	v.SetDefault(KeyImportWeightUnit, "lb")
	v.SetDefault(KeyExportFormat, "csv")
	v.SetDefault(KeyFlagsAutoResolve, true)
}

func validateUnits(cfg ImportConfig) error {
	if value := strings.TrimSpace(cfg.DefaultLengthUnit); value != "" {
		unit, err := units.ParseUnit(value)
		if err != nil {
			return fmt.Errorf("validation failed: import.default_length_unit: %w", err)
		}
		switch unit {
		case units.Inches, units.Centimeters, units.Millimeters:
		default:
			return fmt.Errorf("validation failed: import.default_length_unit %q is not a length unit", value)
		}
	}
	if value := strings.TrimSpace(cfg.DefaultWeightUnit); value != "" {
		unit, err := units.ParseUnit(value)
		if err != nil {
			return fmt.Errorf("validation failed: import.default_weight_unit: %w", err)
		}
		switch unit {
		case units.Pounds, units.Kilograms, units.Grams:
		default:
			return fmt.Errorf("validation failed: import.default_weight_unit %q is not a weight unit", value)
		}
	}
	return nil
}

func validateExport(cfg ExportConfig) error {
	switch strings.TrimSpace(strings.ToLower(cfg.DefaultFormat)) {
	case "", "csv", "excel", "xlsx":
		return nil
	default:
		return fmt.Errorf("validation failed: export.default_format %q is not supported (valid: csv, excel)", cfg.DefaultFormat)
	}
}
