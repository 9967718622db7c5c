package reply

import (
	"fmt"
	"time"

	"altron/internal/chat"
)

// Deps carries what the non-trivial responders need.
type Deps struct {
	Backend Converser
	// DefaultModel is used when no model is picked in the UI.
	DefaultModel string
	CannedText   string
	CannedDelay  time.Duration
	OpenAI       OpenAIConfig
}

// FromMode builds the responder for mode. ModeNone yields a nil
// responder, meaning submissions get no reply.
func FromMode(mode Mode, deps Deps) (chat.Responder, error) {
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeEcho:
		return Echo{}, nil
	case ModeCanned:
		return Canned{Text: deps.CannedText, Delay: deps.CannedDelay}, nil
	case ModeBackend:
		if deps.Backend == nil {
			return nil, fmt.Errorf("reply mode %q needs a backend client", mode)
		}
		return Backend{Client: deps.Backend, Model: deps.DefaultModel}, nil
	case ModeOpenAI:
		cfg := deps.OpenAI
		if cfg.Model == "" {
			cfg.Model = deps.DefaultModel
		}
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown reply mode %q", mode)
	}
}
