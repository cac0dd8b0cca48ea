package sink

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the sink provider based on flags.
func Configured() Sink {
	provider := lflag.String("sink-provider", "webhook", "Sink provider to use (available: webhook)")

	var p struct{ Sink }

	wh := configuredWebhook()

	lflag.Do(func() {
		switch *provider {
		case "webhook":
			if err := wh.Validate(); err != nil {
				panic(fmt.Sprintf("webhook sink validation failed: %v", err))
			}
			p.Sink = wh
		default:
			panic(fmt.Sprintf("unknown sink provider: %s", *provider))
		}
	})

	return &p
}
