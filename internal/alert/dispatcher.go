package alert

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher fans events out to matching webhooks in the background.
// A nil Dispatcher drops every event.
type Dispatcher struct {
	configs []Config
	wg      sync.WaitGroup
}

// NewDispatcher returns nil when no webhooks are configured.
func NewDispatcher(configs []Config) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends event to every webhook subscribed to its status or type.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg Config) {
			defer d.wg.Done()
			if err := Send(context.Background(), cfg, event); err != nil {
				log.Warn().Err(err).Str("execution_id", event.ExecutionID).
					Str("event", event.Kind()).Msg("alert delivery failed")
			}
		}(cfg)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func matches(events []string, event Event) bool {
	for _, e := range events {
		if e == event.Status {
			return true
		}
		if event.Type != "" && e == event.Type {
			return true
		}
	}
	return false
}
