package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
	"github.com/prettymuchbryce/kpicheck/internal/pattern"
	"github.com/prettymuchbryce/kpicheck/internal/utils"
)

// Report formats.
const (
	FormatConsole = "console"
	FormatTxt     = "txt"
	FormatExcel   = "excel"
)

// Quarter formats used when rendering the fix template.
const (
	QuarterChinese = "chinese"
	QuarterArabic  = "arabic"
)

// Formats lists the accepted report formats.
var Formats = []string{FormatConsole, FormatTxt, FormatExcel}

// Config represents the top-level configuration.
type Config struct {
	CheckLastParagraphs int           `mapstructure:"check_last_paragraphs" json:"check_last_paragraphs"`
	KPIPatterns         []string      `mapstructure:"kpi_patterns" json:"kpi_patterns"`
	Report              ReportConfig  `mapstructure:"report" json:"report"`
	Fixer               FixerConfig   `mapstructure:"fixer" json:"fixer"`
	Scan                ScanConfig    `mapstructure:"scan" json:"scan"`
	Logging             LoggingConfig `mapstructure:"logging" json:"logging"`
	History             HistoryConfig `mapstructure:"history" json:"history"`

	patterns []*pattern.Compiled
}

// ReportConfig controls report output.
type ReportConfig struct {
	DefaultFormat string `mapstructure:"default_format" json:"default_format"`
	ExcelFilename string `mapstructure:"excel_filename" json:"excel_filename"`
	TxtFilename   string `mapstructure:"txt_filename" json:"txt_filename"`
}

// FixerConfig controls the fixer.
type FixerConfig struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled"`
	Template      string `mapstructure:"template" json:"template"`
	QuarterFormat string `mapstructure:"quarter_format" json:"quarter_format"`
}

// ScanConfig controls file selection and parallelism.
type ScanConfig struct {
	Recursive bool     `mapstructure:"recursive" json:"recursive"`
	Workers   int      `mapstructure:"workers" json:"workers"` // 0 means one per CPU
	Exclude   []string `mapstructure:"exclude" json:"exclude"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// HistoryConfig locates the run history database. Empty disables history.
type HistoryConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// Error is a configuration problem. It is always fatal.
type Error struct {
	Path  string // config file, empty for built-in defaults
	Field string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		CheckLastParagraphs: 10,
		KPIPatterns: []string{
			`(\d{4})年?第?[一二三四]季度KPI考核自评(\d{1,3})分`,
			`季度KPI考核自评(\d{1,3})分`,
			`KPI\s*自评得分\s*(\d{1,3})\s*分`,
			`自评得分\s*(\d{1,3})\s*分`,
			`KPI考核自评(\d{1,3})分`,
		},
		Report: ReportConfig{
			DefaultFormat: FormatExcel,
			ExcelFilename: "KPI检查报告.xlsx",
			TxtFilename:   "KPI检查报告.txt",
		},
		Fixer: FixerConfig{
			Template:      "{year}年第{quarter}季度KPI考核自评__分。",
			QuarterFormat: QuarterChinese,
		},
		Scan: ScanConfig{
			Workers: 4,
			Exclude: []string{},
		},
		Logging: DefaultLoggingConfig(),
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("built-in configuration is invalid: %v", err))
	}
	return cfg
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: "warn",
	}
}

// Load reads and validates a configuration file using the real filesystem.
func Load(path string) (*Config, error) {
	return LoadWithFs(path, afero.NewOsFs())
}

// LoadWithFs reads a JSON configuration file from afs over the defaults and
// validates the result. Nested sections are merged key by key, so a file that
// only sets report.default_format keeps the default file names.
func LoadWithFs(path string, afs afero.Fs) (*Config, error) {
	expanded := pathutil.ExpandTilde(path)

	v := viper.New()
	v.SetFs(afs)
	v.SetConfigFile(expanded)
	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: expanded, Err: err}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Path: expanded, Err: err}
	}

	// Lists replace the defaults outright rather than merging element-wise.
	if v.IsSet("kpi_patterns") {
		cfg.KPIPatterns = v.GetStringSlice("kpi_patterns")
	}
	if v.IsSet("scan.exclude") {
		cfg.Scan.Exclude = v.GetStringSlice("scan.exclude")
	}
	if cfg.Scan.Exclude == nil {
		cfg.Scan.Exclude = []string{}
	}

	if err := cfg.Validate(); err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			cerr.Path = expanded
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and compiles the KPI patterns.
func (c *Config) Validate() error {
	if c.CheckLastParagraphs < 1 {
		return &Error{Field: "check_last_paragraphs", Err: fmt.Errorf("must be at least 1, got %d", c.CheckLastParagraphs)}
	}

	if len(c.KPIPatterns) == 0 {
		return &Error{Field: "kpi_patterns", Err: errors.New("at least one pattern is required")}
	}
	compiled, err := pattern.Compile(c.KPIPatterns)
	if err != nil {
		return &Error{Field: "kpi_patterns", Err: err}
	}

	if !slices.Contains(Formats, c.Report.DefaultFormat) {
		return &Error{Field: "report.default_format", Err: fmt.Errorf("unknown format %q (want one of %s)", c.Report.DefaultFormat, strings.Join(Formats, ", "))}
	}
	if strings.TrimSpace(c.Report.ExcelFilename) == "" {
		return &Error{Field: "report.excel_filename", Err: errors.New("must not be empty")}
	}
	if strings.TrimSpace(c.Report.TxtFilename) == "" {
		return &Error{Field: "report.txt_filename", Err: errors.New("must not be empty")}
	}

	if err := validateTemplate(utils.Template(c.Fixer.Template)); err != nil {
		return &Error{Field: "fixer.template", Err: err}
	}
	if c.Fixer.QuarterFormat != QuarterChinese && c.Fixer.QuarterFormat != QuarterArabic {
		return &Error{Field: "fixer.quarter_format", Err: fmt.Errorf("unknown quarter format %q (want %s or %s)", c.Fixer.QuarterFormat, QuarterChinese, QuarterArabic)}
	}

	if c.Scan.Workers < 0 {
		return &Error{Field: "scan.workers", Err: fmt.Errorf("must not be negative, got %d", c.Scan.Workers)}
	}

	for _, glob := range c.Scan.Exclude {
		if !doublestar.ValidatePattern(glob) {
			return &Error{Field: "scan.exclude", Err: fmt.Errorf("invalid glob %q", glob)}
		}
	}

	c.patterns = compiled
	return nil
}

func validateTemplate(t utils.Template) error {
	vars := t.Variables()
	for _, required := range []string{"year", "quarter"} {
		if !slices.Contains(vars, required) {
			return fmt.Errorf("missing {%s} placeholder", required)
		}
	}
	for _, name := range vars {
		if name != "year" && name != "quarter" {
			return fmt.Errorf("unknown placeholder {%s}", name)
		}
	}
	if n := t.Blanks(); n != 1 {
		return fmt.Errorf("must contain exactly one score blank (two or more underscores), found %d", n)
	}
	return nil
}

// Patterns returns the compiled KPI patterns in declaration order.
// It is only valid on a configuration that passed Validate.
func (c *Config) Patterns() []*pattern.Compiled {
	return c.patterns
}

// WithParagraphs returns a copy of c with CheckLastParagraphs replaced.
func (c *Config) WithParagraphs(n int) (*Config, error) {
	clone := *c
	clone.CheckLastParagraphs = n
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &clone, nil
}
