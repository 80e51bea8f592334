package httpapi

import "time"

// Options controls HTTP API runtime behavior.
type Options struct {
	// BuildTimeout is the hard upper bound for a single document build
	// (all upstream fetches + synthesis).
	BuildTimeout time.Duration

	// PrecacheTimeout bounds one whole precache batch.
	PrecacheTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BuildTimeout <= 0 {
		o.BuildTimeout = 60 * time.Second
	}
	if o.PrecacheTimeout <= 0 {
		o.PrecacheTimeout = 5 * time.Minute
	}
	return o
}
