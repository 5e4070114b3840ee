// Command download-model fetches Vosk models into a local data directory
// so the service can start without network access.
//
// Models are named on the command line, or picked by language:
//
//	download-model vosk-model-small-en-us-0.15
//	download-model -language de -dir ./data
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wirgen/wyoming-vosk/internal/asr"
)

func main() {
	var (
		language = flag.String("language", "", "download the models known for this language")
		index    = flag.Int("index", 0, "which of the language's models to pick (with -language)")
		all      = flag.Bool("all", false, "download every model known for the language (with -language)")
		dir      = flag.String("dir", "./data", "directory to download models into")
		baseURL  = flag.String("base-url", "", "override the model download base URL")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	models, err := selectModels(flag.Args(), *language, *index, *all)
	if err != nil {
		logger.Error("nothing to download", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted")
		cancel()
	}()

	downloader := asr.NewDownloader(*baseURL, logger)
	failed := false
	for _, model := range models {
		path, err := downloader.Ensure(ctx, model, []string{*dir}, *dir)
		if err != nil {
			logger.Error("download failed", "model", model, "error", err)
			failed = true
			continue
		}
		fmt.Println(path)
	}
	if failed {
		os.Exit(1)
	}
}

// selectModels resolves the explicit names and the -language selection into
// the list of models to fetch.
func selectModels(names []string, language string, index int, all bool) ([]string, error) {
	models := append([]string(nil), names...)
	if language != "" {
		known := asr.ModelsFor(language)
		if len(known) == 0 {
			return nil, fmt.Errorf("no models known for language %q", language)
		}
		if all {
			models = append(models, known...)
		} else {
			if index < 0 || index >= len(known) {
				return nil, fmt.Errorf("model index %d out of range for %q (have %d)", index, language, len(known))
			}
			models = append(models, known[index])
		}
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no model names given (pass names or -language)")
	}
	return models, nil
}
