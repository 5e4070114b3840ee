package application

import "context"

// RecognizerSession decodes one utterance. Sessions are single-use: feed
// PCM with Accept, read the transcript with Final, then Close.
type RecognizerSession interface {
	Accept(chunk []byte)
	Final() (string, error)
	Close()
}

// Recognizer opens decoding sessions against one loaded model. A non-empty
// grammar restricts the recognizer to those words.
type Recognizer interface {
	NewSession(sampleRate int, grammar []string) (RecognizerSession, error)
}

// ModelSource resolves a language and an optional requested model name to a
// loaded recognizer, downloading and loading models as needed. Get blocks
// until the model is usable, so the first utterance in a new language can
// take a while.
type ModelSource interface {
	Get(ctx context.Context, language, requested string) (model string, rec Recognizer, err error)
}
