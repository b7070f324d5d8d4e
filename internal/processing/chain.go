package processing

import (
	"errors"
	"slices"
)

// Stage is one step of a processing chain. Process must not modify its
// input and returns a new slice.
type Stage interface {
	Name() string
	Process(samples []float64) []float64
}

// ErrEmptyChain is returned by Build when no stage was added
var ErrEmptyChain = errors.New("processing chain has no stages")

// Builder collects stages for a Chain
type Builder struct {
	stages []Stage
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a stage. Nil stages are ignored.
func (b *Builder) Add(s Stage) *Builder {
	if s != nil {
		b.stages = append(b.stages, s)
	}
	return b
}

// Build returns the chain. Later calls to Add do not affect it.
func (b *Builder) Build() (*Chain, error) {
	if len(b.stages) == 0 {
		return nil, ErrEmptyChain
	}
	return &Chain{stages: slices.Clone(b.stages)}, nil
}

// Chain runs its stages in order
type Chain struct {
	stages []Stage
}

// Process feeds samples through every stage and returns the final output.
// The input slice is left untouched.
func (c *Chain) Process(samples []float64) []float64 {
	out := slices.Clone(samples)
	if out == nil {
		out = []float64{}
	}
	for _, s := range c.stages {
		out = s.Process(out)
	}
	return out
}

// Stages returns the stage names in execution order
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}
