package application

import (
	"strings"

	"github.com/wirgen/wyoming-vosk/internal/asr"
	"github.com/wirgen/wyoming-vosk/internal/wyoming"
)

// ServiceInfo builds the describe answer: the service identity plus every
// published model grouped under it. Clients use it to populate language
// pickers, so each model carries its language.
func ServiceInfo(version string) wyoming.Event {
	var models []wyoming.AsrModel
	for _, language := range asr.Languages() {
		for _, name := range asr.ModelsFor(language) {
			models = append(models, wyoming.AsrModel{
				Name:        name,
				Description: strings.TrimPrefix(name, "vosk-model-"),
				Attribution: wyoming.Attribution{
					Name: "Alpha Cephei",
					URL:  "https://alphacephei.com/vosk/models",
				},
				Installed: true,
				Languages: []string{language},
			})
		}
	}

	return wyoming.NewInfo(wyoming.Info{
		Asr: []wyoming.AsrProgram{{
			Name:        "vosk",
			Description: "A speech recognition toolkit",
			Attribution: wyoming.Attribution{
				Name: "Alpha Cephei",
				URL:  "https://alphacephei.com/vosk/",
			},
			Installed: true,
			Version:   version,
			Models:    models,
		}},
	})
}
