// Package cache persists built road networks so that a restart can skip the
// rebuild. Every failure is logged and reported as a miss; a miss simply
// triggers a full rebuild.
package cache

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/azybler/roadnet/pkg/graph"
)

// FormatVersion is appended to every cache key. Changing the binary layout
// requires bumping it; entries written under an older version are then
// plain misses.
const FormatVersion = "v1"

// Store saves and loads graphs by key.
type Store interface {
	// Save persists g under key and reports whether it succeeded.
	Save(key string, g *graph.Graph) bool
	// Load returns the graph stored under key. The spatial index is not
	// part of the stored data.
	Load(key string) (*graph.Graph, bool)
}

var operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "roadnet_cache_operations_total",
	Help: "Cache operations by store, operation and result",
}, []string{"store", "op", "result"})

func record(store, op string, ok bool) {
	result := "ok"
	if !ok {
		result = "miss"
		if op == "save" {
			result = "error"
		}
	}
	operations.WithLabelValues(store, op, result).Inc()
}

// Key derives the cache key of a source layer: the layer name with every
// character outside [A-Za-z0-9_-] replaced by '_', plus the format version.
func Key(layer string) string {
	return sanitize(layer) + "." + FormatVersion
}

// BoundedKey is Key for a build restricted to b. Builds of one layer with
// different bounds never share an entry, and none shares the unbounded one.
func BoundedKey(layer string, b orb.Bound) string {
	var buf []byte
	for _, v := range [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	h := fnv.New64a()
	h.Write(buf)
	return fmt.Sprintf("%s_bbox%016x.%s", sanitize(layer), h.Sum64(), FormatVersion)
}

func sanitize(layer string) string {
	var b strings.Builder
	for _, r := range layer {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "layer"
	}
	return name
}

// decode runs fn and converts a panic into an error, so a corrupted entry
// can never take the process down.
func decode(fn func() (*graph.Graph, error)) (g *graph.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("decode panic: %v", r)
		}
	}()
	return fn()
}

// Nop is a Store that never stores anything.
type Nop struct{}

func (Nop) Save(string, *graph.Graph) bool   { return false }
func (Nop) Load(string) (*graph.Graph, bool) { return nil, false }
