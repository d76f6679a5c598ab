package model

import (
	"context"
	"time"
)

// Prober answers "is this template (or text) on screen right now?".
// Implementations may take hundreds of milliseconds and may ignore ctx;
// callers off-load them (see probe.TemplateJob).
type Prober interface {
	Probe(ctx context.Context, t Template) (Position, error)
}

// Actuator drives the device. Both calls are side-effecting and safe to retry.
type Actuator interface {
	Tap(ctx context.Context, p Position) error
	Wait(ctx context.Context, d time.Duration) error
}

// Capabilities bundles the external collaborators the core depends on.
type Capabilities struct {
	Prober    Prober
	Actuator  Actuator
	Templates Templates
}

// Template describes something to look for on screen. Matching itself
// happens on the device side; the core only names what it wants.
type Template struct {
	Name      string  `json:"name" yaml:"name"`
	Image     string  `json:"image,omitempty" yaml:"image"`
	Text      string  `json:"text,omitempty" yaml:"text"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold"`
	Region    *Region `json:"region,omitempty" yaml:"region"`
}

// IsText reports whether this is an OCR lookup rather than an image match.
func (t Template) IsText() bool { return t.Text != "" && t.Image == "" }

// Templates is the read-only template store, keyed by template name.
type Templates map[string]Template

// Lookup returns the template registered under name.
func (ts Templates) Lookup(name string) (Template, bool) {
	t, ok := ts[name]
	return t, ok
}
