package graph

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Cache file layout, all little-endian:
//
//	mergeTolerance float64
//	nodeCount      int32
//	nodeCount times:
//	  id        int32
//	  x, y      float64
//	  edgeCount int32
//	  edgeCount times:
//	    target          int32
//	    weight          float64
//	    sourceFeatureId int32
//	    segmentIndex    int32
//
// The format carries no version; cache keys carry it instead.
const (
	maxNodes = 50_000_000
	maxEdges = 200_000_000

	nodeRecordSize = 4 + 8 + 8 + 4
	edgeRecordSize = 4 + 8 + 4 + 4

	// preallocNodes caps up-front allocation; a header alone cannot make
	// Decode reserve more than this before records arrive.
	preallocNodes = 1 << 16
)

var le = binary.LittleEndian

// WriteBinary serializes g to path. The file is written to a temporary path
// and renamed into place, so readers never observe a partial file.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	if err := Encode(f, g); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary deserializes a graph from path. The spatial index is not part of
// the file and must be rebuilt by the caller.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	return decode(f, fi.Size())
}

// Encode writes g in the cache layout.
func Encode(w io.Writer, g *Graph) error {
	if g == nil {
		return errors.New("nil graph")
	}
	if g.NumNodes > maxNodes || g.NumEdges > maxEdges {
		return fmt.Errorf("graph too large: %d nodes, %d edges", g.NumNodes, g.NumEdges)
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	var buf [nodeRecordSize]byte

	le.PutUint64(buf[0:8], math.Float64bits(g.Tolerance))
	le.PutUint32(buf[8:12], g.NumNodes)
	if _, err := bw.Write(buf[:12]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		le.PutUint32(buf[0:4], u)
		le.PutUint64(buf[4:12], math.Float64bits(g.X[u]))
		le.PutUint64(buf[12:20], math.Float64bits(g.Y[u]))
		le.PutUint32(buf[20:24], end-start)
		if _, err := bw.Write(buf[:nodeRecordSize]); err != nil {
			return fmt.Errorf("write node %d: %w", u, err)
		}
		for e := start; e < end; e++ {
			le.PutUint32(buf[0:4], g.Head[e])
			le.PutUint64(buf[4:12], math.Float64bits(g.Weight[e]))
			le.PutUint32(buf[12:16], uint32(g.Feature[e]))
			le.PutUint32(buf[16:20], uint32(g.Segment[e]))
			if _, err := bw.Write(buf[:edgeRecordSize]); err != nil {
				return fmt.Errorf("write edge %d: %w", e, err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// sizer is implemented by readers that know their total length, such as
// *bytes.Reader.
type sizer interface {
	Size() int64
}

// Decode reads a graph in the cache layout and validates it: node ids must
// be dense and in order, edge targets in range, and no bytes may follow the
// last record.
func Decode(r io.Reader) (*Graph, error) {
	size := int64(-1)
	if s, ok := r.(sizer); ok {
		size = s.Size()
	}
	return decode(r, size)
}

// decode is Decode with the input length when known, or -1.
func decode(r io.Reader, size int64) (*Graph, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var buf [nodeRecordSize]byte

	if _, err := io.ReadFull(br, buf[:12]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	tol := math.Float64frombits(le.Uint64(buf[0:8]))
	if math.IsNaN(tol) || math.IsInf(tol, 0) || tol <= 0 {
		return nil, fmt.Errorf("invalid merge tolerance %v", tol)
	}
	count := int32(le.Uint32(buf[8:12]))
	if count < 0 || count > maxNodes {
		return nil, fmt.Errorf("node count %d out of range", count)
	}
	if size >= 0 && int64(count) > (size-12)/nodeRecordSize {
		return nil, fmt.Errorf("node count %d exceeds input of %d bytes", count, size)
	}
	numNodes := uint32(count)

	prealloc := min(numNodes, preallocNodes)
	g := &Graph{
		NumNodes:  numNodes,
		FirstOut:  make([]uint32, 1, prealloc+1),
		X:         make([]float64, 0, prealloc),
		Y:         make([]float64, 0, prealloc),
		Tolerance: tol,
	}

	for u := uint32(0); u < numNodes; u++ {
		if _, err := io.ReadFull(br, buf[:nodeRecordSize]); err != nil {
			return nil, fmt.Errorf("read node %d: %w", u, err)
		}
		if id := int32(le.Uint32(buf[0:4])); id != int32(u) {
			return nil, fmt.Errorf("node at position %d has id %d", u, id)
		}
		g.X = append(g.X, math.Float64frombits(le.Uint64(buf[4:12])))
		g.Y = append(g.Y, math.Float64frombits(le.Uint64(buf[12:20])))
		edgeCount := int32(le.Uint32(buf[20:24]))
		if edgeCount < 0 || uint64(len(g.Head))+uint64(edgeCount) > maxEdges {
			return nil, fmt.Errorf("node %d: edge count %d out of range", u, edgeCount)
		}

		for i := int32(0); i < edgeCount; i++ {
			if _, err := io.ReadFull(br, buf[:edgeRecordSize]); err != nil {
				return nil, fmt.Errorf("read edge %d of node %d: %w", i, u, err)
			}
			target := le.Uint32(buf[0:4])
			if target >= numNodes {
				return nil, fmt.Errorf("node %d: edge target %d >= NumNodes %d", u, target, numNodes)
			}
			g.Head = append(g.Head, target)
			g.Weight = append(g.Weight, math.Float64frombits(le.Uint64(buf[4:12])))
			g.Feature = append(g.Feature, int32(le.Uint32(buf[12:16])))
			g.Segment = append(g.Segment, int32(le.Uint32(buf[16:20])))
		}
		g.FirstOut = append(g.FirstOut, uint32(len(g.Head)))
	}
	g.NumEdges = uint32(len(g.Head))

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, errors.New("trailing data after last node")
	}
	return g, nil
}
