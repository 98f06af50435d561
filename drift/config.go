package drift

// Config holds the streaming-specific tunables that have no home in
// config.Config: that struct is the batch trainer's JSON surface, while
// the drift controller's own knobs (fading factor, buffer sizes,
// rolling-window cadence, retrain threshold and cooldown) only exist
// while a stream is being consumed.
type Config struct {
	// FadingFactor is phi, the EMA decay applied to each tree's
	// streaming correctness score. Default 0.96.
	FadingFactor float64
	// RetrainBufferSize bounds the full-retrain FIFO. Default 10000.
	RetrainBufferSize int
	// StreamBufferSize bounds the tree-replacement candidate buffer.
	// Default 2000.
	StreamBufferSize int
	// WindowSize is the rolling-window length for the retrain accuracy
	// check. Default 500, short enough that a sudden distribution
	// shift shows up in the window well before a few thousand
	// post-shift samples have streamed past.
	WindowSize int
	// WindowStep is how often (in samples) the rolling-window check
	// re-runs once WindowSize has elapsed. Default 10.
	WindowStep int
	// RetrainAccThreshold is the rolling accuracy floor that triggers
	// a full retrain. Default 0.5.
	RetrainAccThreshold float64
	// RetrainPatience is the cooldown (in samples) after a full
	// retrain fires, before another can. Default 2000.
	RetrainPatience int
}

// DefaultConfig returns the documented default for every field.
func DefaultConfig() Config {
	return Config{
		FadingFactor:        0.96,
		RetrainBufferSize:   10000,
		StreamBufferSize:    2000,
		WindowSize:          500,
		WindowStep:          10,
		RetrainAccThreshold: 0.5,
		RetrainPatience:     2000,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.FadingFactor == 0 {
		c.FadingFactor = d.FadingFactor
	}
	if c.RetrainBufferSize == 0 {
		c.RetrainBufferSize = d.RetrainBufferSize
	}
	if c.StreamBufferSize == 0 {
		c.StreamBufferSize = d.StreamBufferSize
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.WindowStep == 0 {
		c.WindowStep = d.WindowStep
	}
	if c.RetrainAccThreshold == 0 {
		c.RetrainAccThreshold = d.RetrainAccThreshold
	}
	if c.RetrainPatience == 0 {
		c.RetrainPatience = d.RetrainPatience
	}
}
