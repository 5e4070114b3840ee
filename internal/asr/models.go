// Package asr resolves, downloads and loads Vosk speech recognition
// models, and hands out per-utterance recognizer sessions over them.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wirgen/wyoming-vosk/internal/observe"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

// modelsForLanguage lists the published models per language, smallest
// first. The configured model index picks within a list; an index past the
// end clamps to the last entry.
var modelsForLanguage = map[string][]string{
	"ar": {"vosk-model-ar-mgb2-0.4"},
	"br": {"vosk-model-br-0.8"},
	"ca": {"vosk-model-small-ca-0.4"},
	"cs": {"vosk-model-small-cs-0.4-rhasspy"},
	"de": {"vosk-model-small-de-0.15", "vosk-model-de-0.21", "vosk-model-de-tuda-0.6-900k"},
	"el": {"vosk-model-el-gr-0.7"},
	"en": {"vosk-model-small-en-us-0.15", "vosk-model-en-us-0.22", "vosk-model-en-us-0.22-lgraph"},
	"eo": {"vosk-model-small-eo-0.42"},
	"es": {"vosk-model-small-es-0.42", "vosk-model-es-0.42"},
	"fa": {"vosk-model-small-fa-0.5"},
	"fr": {"vosk-model-small-fr-0.22", "vosk-model-fr-0.22"},
	"hi": {"vosk-model-small-hi-0.22", "vosk-model-hi-0.22"},
	"it": {"vosk-model-small-it-0.22", "vosk-model-it-0.22"},
	"ja": {"vosk-model-small-ja-0.22", "vosk-model-ja-0.22"},
	"ko": {"vosk-model-small-ko-0.22"},
	"kz": {"vosk-model-kz-0.15"},
	"nl": {"vosk-model-small-nl-0.22", "vosk-model-nl-spraakherkenning-0.6"},
	"pl": {"vosk-model-small-pl-0.22"},
	"pt": {"vosk-model-small-pt-0.3"},
	"ru": {"vosk-model-small-ru-0.22", "vosk-model-ru-0.42"},
	"sv": {"vosk-model-small-sv-rhasspy-0.15"},
	"tl": {"vosk-model-tl-ph-generic-0.6"},
	"tr": {"vosk-model-small-tr-0.3"},
	"uk": {"vosk-model-small-uk-v3-nano", "vosk-model-small-uk-v3", "vosk-model-uk-v3"},
	"uz": {"vosk-model-small-uz-0.22"},
	"vi": {"vosk-model-small-vn-0.4"},
	"zh": {"vosk-model-small-cn-0.22", "vosk-model-cn-0.22"},
}

// casingForModel marks models whose vocabulary is case sensitive; for
// these the model's requirement beats any configured casing.
var casingForModel = map[string]textnorm.Casing{
	"vosk-model-de-tuda-0.6-900k": textnorm.CasingKeep,
}

// DefaultUnknownToken is the unknown-word marker baked into the published
// model graphs.
const DefaultUnknownToken = "[unk]"

// Languages returns every language with a published model, sorted.
func Languages() []string {
	languages := make([]string, 0, len(modelsForLanguage))
	for language := range modelsForLanguage {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

// ModelsFor returns the published model names for a language, smallest
// first. The slice is shared; callers must not modify it.
func ModelsFor(language string) []string {
	return modelsForLanguage[language]
}

// CasingFor resolves the transcript casing for a model: the model's own
// requirement wins, then the configured per-language override, then
// casefold.
func CasingFor(model, language string, overrides map[string]textnorm.Casing) textnorm.Casing {
	if c, ok := casingForModel[model]; ok {
		return c
	}
	if c, ok := overrides[language]; ok {
		return c
	}
	return textnorm.DefaultCasing
}

// Registry resolves languages to models and keeps loaded engines cached.
// A model graph costs hundreds of megabytes to load, so each is loaded at
// most once and shared across clients.
type Registry struct {
	dataDirs    []string
	downloadDir string
	overrides   map[string]string // language → model name
	modelIndex  int
	downloader  *Downloader
	logger      *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates a registry searching dataDirs for models and
// downloading missing ones into downloadDir.
func NewRegistry(dataDirs []string, downloadDir string, overrides map[string]string, modelIndex int, downloader *Downloader, logger *slog.Logger) *Registry {
	return &Registry{
		dataDirs:    dataDirs,
		downloadDir: downloadDir,
		overrides:   overrides,
		modelIndex:  modelIndex,
		downloader:  downloader,
		logger:      logger.With("component", "asr"),
		engines:     make(map[string]*Engine),
	}
}

// ResolveName picks the model for a language. A configured per-language
// override wins even over the client's requested name; otherwise the
// requested name is honored, and the model index picks from the published
// list as a last resort.
func (r *Registry) ResolveName(language, requested string) (string, error) {
	if name, ok := r.overrides[language]; ok && name != "" {
		return name, nil
	}
	if requested != "" {
		return requested, nil
	}
	available := modelsForLanguage[language]
	if len(available) == 0 {
		return "", fmt.Errorf("asr: no model for language %q", language)
	}
	index := r.modelIndex
	if index >= len(available) {
		index = len(available) - 1
	}
	if index < 0 {
		index = 0
	}
	return available[index], nil
}

// Get returns a ready engine for the language, resolving the model name,
// downloading the model if needed and loading it on first use. Concurrent
// requests for the same model share one load.
func (r *Registry) Get(ctx context.Context, language, requested string) (string, *Engine, error) {
	name, err := r.ResolveName(language, requested)
	if err != nil {
		return "", nil, err
	}

	r.mu.RLock()
	engine, ok := r.engines[name]
	r.mu.RUnlock()
	if ok {
		return name, engine, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		engine, ok := r.engines[name]
		r.mu.RUnlock()
		if ok {
			return engine, nil
		}

		dir, err := r.downloader.Ensure(ctx, name, r.dataDirs, r.downloadDir)
		if err != nil {
			return nil, err
		}

		started := time.Now()
		engine, err = LoadEngine(dir)
		if err != nil {
			return nil, err
		}
		r.logger.Info("loaded model",
			"model", name,
			"path", dir,
			"duration", time.Since(started),
		)
		observe.DefaultMetrics().RecordModelLoad(ctx, name, time.Since(started).Seconds())

		r.mu.Lock()
		r.engines[name] = engine
		r.mu.Unlock()
		return engine, nil
	})
	if err != nil {
		return "", nil, err
	}
	return name, v.(*Engine), nil
}

// Close frees every loaded engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Warn("closing engine", "model", name, "error", err)
		}
		delete(r.engines, name)
	}
	return nil
}
