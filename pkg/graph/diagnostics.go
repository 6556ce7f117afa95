package graph

import (
	"fmt"
	"strings"
	"time"
)

// BuildStats summarizes one build attempt.
type BuildStats struct {
	Features       int // features enumerated
	FailedFeatures int // features whose geometry could not be planarized
	Segments       int // atomic segments produced by planarization
	SelfLoops      int // segments collapsed onto a single node
	Nodes          uint32
	Edges          uint32
	Components     int
	// LargestComponent is the node count of the largest component.
	LargestComponent uint32
	Elapsed          time.Duration
}

// Diagnostics is the human-readable log of a build attempt. It is
// informational only; callers must not parse it.
type Diagnostics struct {
	Stats BuildStats
	lines []string
}

// Addf appends a formatted line.
func (d *Diagnostics) Addf(format string, args ...any) {
	if d == nil {
		return
	}
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// Lines returns the accumulated lines in order.
func (d *Diagnostics) Lines() []string {
	if d == nil {
		return nil
	}
	return d.lines
}

func (d *Diagnostics) String() string {
	return strings.Join(d.Lines(), "\n")
}
