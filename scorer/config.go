package scorer

// Config holds the weights applied by LMScorer.
type Config struct {
	LMWeight             float64 // scales every language model delta
	WordCountWeight      float64 // added for every completed word
	ValidWordCountWeight float64 // added for every completed in-vocabulary word
	UnknownPrefixLogProb float64 // word estimate once a prefix leaves the trie
}

// DefaultConfig returns the weights of an unbiased scorer.
func DefaultConfig() Config {
	return Config{
		LMWeight:             1.0,
		WordCountWeight:      0.0,
		ValidWordCountWeight: 0.0,
		UnknownPrefixLogProb: -10.0,
	}
}

// Option configures an LMScorer.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

func WithLMWeight(w float64) Option {
	return func(c *Config) {
		c.LMWeight = w
	}
}

func WithWordCountWeight(w float64) Option {
	return func(c *Config) {
		c.WordCountWeight = w
	}
}

func WithValidWordCountWeight(w float64) Option {
	return func(c *Config) {
		c.ValidWordCountWeight = w
	}
}

// WithUnknownPrefixLogProb sets the estimate used for prefixes no known word
// starts with.
func WithUnknownPrefixLogProb(lp float64) Option {
	return func(c *Config) {
		c.UnknownPrefixLogProb = lp
	}
}
