package alloc

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Options configures a Heap from the environment.
type Options struct {
	// Limit caps live content bytes; 0 means unlimited.
	Limit int64 `env:"TEXTVALUE_ALLOC_LIMIT" envDefault:"0"`
	// LogLevel is a logrus level name. Allocation events log at debug.
	LogLevel string `env:"TEXTVALUE_LOG_LEVEL" envDefault:"info"`
}

// DefaultOptions returns the settings used when the environment sets nothing:
// no limit and info-level logging.
func DefaultOptions() Options {
	return Options{
		Limit:    0,
		LogLevel: "info",
	}
}

// LoadOptions reads Options from the environment.
func LoadOptions() (Options, error) {
	opts, err := env.ParseAs[Options]()
	if err != nil {
		return Options{}, fmt.Errorf("alloc: parse env: %w", err)
	}
	if opts.Limit < 0 {
		return Options{}, fmt.Errorf("alloc: negative limit %d", opts.Limit)
	}
	if _, err := logrus.ParseLevel(opts.LogLevel); err != nil {
		return Options{}, fmt.Errorf("alloc: %w", err)
	}
	return opts, nil
}

// NewHeapFromOptions applies the log level and builds a Heap.
func NewHeapFromOptions(opts Options) (*Heap, error) {
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}
	logrus.SetLevel(level)
	return NewHeap(opts.Limit), nil
}

// NewHeapFromEnv is LoadOptions followed by NewHeapFromOptions.
func NewHeapFromEnv() (*Heap, error) {
	opts, err := LoadOptions()
	if err != nil {
		return nil, err
	}
	return NewHeapFromOptions(opts)
}

// newDefaultHeap builds Default from the environment. Invalid settings are
// logged and replaced by DefaultOptions.
func newDefaultHeap() *Heap {
	opts, err := LoadOptions()
	if err != nil {
		logrus.Warnf("alloc: ignoring environment, using defaults: %v", err)
		opts = DefaultOptions()
	}
	h, err := NewHeapFromOptions(opts)
	if err != nil {
		logrus.Warnf("alloc: %v", err)
		return NewHeap(0)
	}
	return h
}
