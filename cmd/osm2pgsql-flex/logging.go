package main

import "go.uber.org/zap"

// newLogger builds the run's structured logger. verbose enables debug-level
// output; otherwise only info-and-above is emitted.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
