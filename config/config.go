package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
	Sentences SentencesConfig `yaml:"sentences"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// URI is the event socket: tcp://host:port, unix:///path or stdio://.
	URI string `yaml:"uri"`
}

type ModelsConfig struct {
	// DataDirs are searched for models, in order.
	DataDirs []string `yaml:"data_dirs"`
	// DownloadDir receives downloaded models; defaults to the first data dir.
	DownloadDir string `yaml:"download_dir"`
	// BaseURL overrides where model archives are fetched from.
	BaseURL string `yaml:"base_url"`
	// DefaultLanguage serves clients that never name one.
	DefaultLanguage string `yaml:"default_language"`
	// ModelIndex picks from a language's published models, smallest first.
	ModelIndex int `yaml:"model_index"`
	// ModelForLanguage pins a model per language, overriding client requests.
	ModelForLanguage map[string]string `yaml:"model_for_language"`
	// PreloadLanguages are loaded at startup instead of on first use.
	PreloadLanguages []string `yaml:"preload_languages"`
}

type SentencesConfig struct {
	// Dir holds one template file per language, <language>.yaml.
	Dir string `yaml:"dir"`
	// DatabaseDir holds the expanded corpus databases; defaults to Dir.
	DatabaseDir string `yaml:"database_dir"`
	// Correct enables corrected mode with the given tolerance: 0 accepts
	// only exact template sentences, 100 always snaps to the closest one.
	// Absent means no correction.
	Correct *int `yaml:"correct"`
	// Limit restricts the recognizer vocabulary to the template words.
	Limit bool `yaml:"limit"`
	// AllowUnknown lets the recognizer flag out-of-vocabulary speech
	// instead of forcing it onto template words.
	AllowUnknown bool `yaml:"allow_unknown"`
	// PhoneticRepair maps misheard words to similar-sounding template
	// words before correction.
	PhoneticRepair bool `yaml:"phonetic_repair"`
	// CasingForLanguage overrides transcript casing per language:
	// casefold, lower, upper or keep.
	CasingForLanguage map[string]string `yaml:"casing_for_language"`
}

type AdminConfig struct {
	// Listen enables the admin HTTP server (health, metrics, dry-run
	// correction) on this address. Empty disables it.
	Listen string `yaml:"listen"`
	// AuthToken guards the mutating admin endpoints when set.
	AuthToken string `yaml:"auth_token"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.URI == "" {
		c.Server.URI = "tcp://0.0.0.0:10300"
	}
	if len(c.Models.DataDirs) == 0 {
		c.Models.DataDirs = []string{"./data"}
	}
	if c.Models.DownloadDir == "" {
		c.Models.DownloadDir = c.Models.DataDirs[0]
	}
	if c.Models.DefaultLanguage == "" {
		c.Models.DefaultLanguage = "en"
	}
	if c.Sentences.DatabaseDir == "" {
		c.Sentences.DatabaseDir = c.Sentences.Dir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if (c.Sentences.Correct != nil || c.Sentences.Limit) && c.Sentences.Dir == "" {
		errs = append(errs, errors.New("sentences.dir is required when correct or limit is enabled"))
	}
	if c.Sentences.Correct != nil && (*c.Sentences.Correct < 0 || *c.Sentences.Correct > 100) {
		errs = append(errs, fmt.Errorf("sentences.correct must be between 0 and 100, got %d", *c.Sentences.Correct))
	}
	if c.Models.ModelIndex < 0 {
		errs = append(errs, fmt.Errorf("models.model_index must not be negative, got %d", c.Models.ModelIndex))
	}
	for language, name := range c.Sentences.CasingForLanguage {
		if _, err := textnorm.ParseCasing(name); err != nil {
			errs = append(errs, fmt.Errorf("sentences.casing_for_language.%s: %w", language, err))
		}
	}

	return errors.Join(errs...)
}

// CasingOverrides converts the configured per-language casing names. Call
// Validate first; names that fail to parse are skipped here.
func (c *SentencesConfig) CasingOverrides() map[string]textnorm.Casing {
	if len(c.CasingForLanguage) == 0 {
		return nil
	}
	out := make(map[string]textnorm.Casing, len(c.CasingForLanguage))
	for language, name := range c.CasingForLanguage {
		casing, err := textnorm.ParseCasing(name)
		if err != nil {
			continue
		}
		out[language] = casing
	}
	return out
}
