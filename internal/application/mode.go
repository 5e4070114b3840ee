package application

import "fmt"

// Mode selects how transcripts are post-processed before they are sent
// back to the client. The mode is fixed at startup; per-session state never
// changes it.
type Mode int

const (
	// ModeOpen emits the recognizer output as-is.
	ModeOpen Mode = iota
	// ModeCorrected snaps the output to the closest template sentence when
	// it scores within the configured cutoff.
	ModeCorrected
	// ModeLimited restricts the recognizer vocabulary to the template words
	// and snaps only exact template sentences.
	ModeLimited
)

func (m Mode) String() string {
	switch m {
	case ModeOpen:
		return "open"
	case ModeCorrected:
		return "corrected"
	case ModeLimited:
		return "limited"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ResolveMode picks the service mode from configuration. Limiting wins over
// correcting; with neither set the recognizer output passes through
// untouched.
func ResolveMode(limit bool, cutoff *int) Mode {
	switch {
	case limit:
		return ModeLimited
	case cutoff != nil:
		return ModeCorrected
	default:
		return ModeOpen
	}
}
