package dispatch

import (
	"time"

	"learnloop/internal/domain/entity"
)

// Config tunes the dispatch engine.
type Config struct {
	// Workers is the number of concurrent delivery goroutines.
	Workers int

	// ProviderTimeout bounds each provider call.
	ProviderTimeout time.Duration

	// BatchSize and BatchDelay control bulk batching: a channel's batch is
	// flushed when it reaches BatchSize or when the oldest buffered message
	// has waited BatchDelay.
	BatchSize  int
	BatchDelay time.Duration

	// RebuildLimit caps how many QUEUED rows are loaded into the buffer per
	// pass, at startup and on each poll.
	RebuildLimit int

	// PollInterval is how often persisted QUEUED rows are re-offered to the
	// buffer, picking up rows created by other processes.
	PollInterval time.Duration

	// ChannelRatesPerMinute paces outbound sends per channel.
	ChannelRatesPerMinute map[entity.Channel]int

	// Retry is the delivery retry schedule.
	Retry RetryPolicy
}

// DefaultConfig returns production defaults. SMS is paced hard because
// carrier gateways throttle aggressively.
func DefaultConfig() Config {
	return Config{
		Workers:         10,
		ProviderTimeout: 10 * time.Second,
		BatchSize:       100,
		BatchDelay:      1 * time.Second,
		RebuildLimit:    1000,
		PollInterval:    3 * time.Second,
		ChannelRatesPerMinute: map[entity.Channel]int{
			entity.ChannelEmail: 100,
			entity.ChannelPush:  1000,
			entity.ChannelSMS:   10,
			entity.ChannelChat:  60,
		},
		Retry: DefaultRetryPolicy(),
	}
}
