package tpx3

import (
	"fmt"
)

// partial is the outcome of clustering one chunk in isolation.
type partial struct {
	chunk     chunk
	headEnd   int // index of the first quiet gap, chunk.end when there is none
	hits      []Hit
	clusterer *Clusterer
}

// quietGap returns the first index i in [start, end) whose predecessor is more
// than tolerance earlier. Every open cluster closes before such an event joins,
// so clustering from i onward does not depend on anything before it.
func quietGap(events []RawEvent, start, end int, tolerance int64) int {
	from := start
	if from == 0 {
		from = 1
	}
	for i := from; i < end; i++ {
		if events[i].Toa-events[i-1].Toa > tolerance {
			return i
		}
	}
	return end
}

func clusterChunk(events []RawEvent, c chunk, config ClusterConfig, res Resolution) *partial {
	p := &partial{
		chunk:   c,
		headEnd: quietGap(events, c.start, c.end, config.Tolerance),
	}
	p.clusterer = NewClusterer(config, res, func(h Hit, _ int) {
		p.hits = append(p.hits, h)
	})
	for i := p.headEnd; i < c.end; i++ {
		p.clusterer.Add(events[i], i)
	}
	return p
}

// ClusterParallel clusters a time-ordered event slice with numWorkers chunks
// and reconciles chunk boundaries sequentially. The result equals
// ClusterEvents on the same input.
//
// Each chunk is clustered from an empty state starting at its first quiet
// gap, so those hits and the clusters still open at the chunk end are exact.
// Events before the gap are replayed through the state carried over from the
// previous chunk.
func ClusterParallel(events []RawEvent, config ClusterConfig, res Resolution, numWorkers int) ([]Hit, error) {
	if numWorkers <= 1 || len(events) < 2*numWorkers {
		return ClusterEvents(events, config, res), nil
	}

	chunks := splitEvenly(len(events), numWorkers)
	partials, err := runWorkers(numWorkers, chunks, func(c chunk) (*partial, error) {
		return clusterChunk(events, c, config, res), nil
	})
	if err != nil {
		return nil, fmt.Errorf("clustering chunks: %w", err)
	}

	hits := make([]Hit, 0, len(events))
	collect := func(h Hit, _ int) {
		hits = append(hits, h)
	}
	carried := NewClusterer(config, res, collect)
	reused := 0

	for _, p := range partials {
		for i := p.chunk.start; i < p.headEnd; i++ {
			carried.Add(events[i], i)
		}
		if p.headEnd == p.chunk.end {
			continue
		}
		carried.Flush()
		hits = append(hits, p.hits...)
		reused += len(p.hits)
		carried = p.clusterer
		carried.emit = collect
	}
	carried.Flush()

	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Clustered %d events into %d hits over %d chunks (%d reused from workers)", len(events), len(hits), len(chunks), reused)
		logger.Info(message, "cluster")
	}
	SortHits(hits)
	return hits, nil
}
