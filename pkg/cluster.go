package tpx3

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// ClusterConfig controls how raw events are grouped into hits.
type ClusterConfig struct {
	Tolerance   int64 // ps between a cluster's latest member and a joining event
	WeightByTot bool
}

func (c ClusterConfig) Validate() error {
	if c.Tolerance < 0 {
		return &ConfigError{Field: "cluster_tolerance", Reason: fmt.Sprintf("must not be negative, got %d", c.Tolerance)}
	}
	return nil
}

type openCluster struct {
	pixels  []PixelKey
	first   int // input index of the earliest member
	minToa  int64
	last    int64
	trigger int64
	members int
	tot     uint64
	sumX    float64
	sumY    float64
	sumTotX float64
	sumTotY float64
}

// Clusterer groups a time-ordered event stream into hits. Open clusters are
// kept in slots and every pixel maps to at most one open slot, so neighbour
// lookup is a fixed 3x3 scan of the occupancy array.
type Clusterer struct {
	config     ClusterConfig
	resolution Resolution
	emit       func(hit Hit, first int)

	slots     []openCluster
	free      []int
	open      []int
	occupancy []int32 // slot+1, 0 when the pixel holds no open cluster

	Clusters int
	Merged   int
}

// NewClusterer returns a clusterer that calls emit for every closed cluster
// with the input index of its first member.
func NewClusterer(config ClusterConfig, res Resolution, emit func(Hit, int)) *Clusterer {
	return &Clusterer{
		config:     config,
		resolution: res,
		emit:       emit,
		occupancy:  make([]int32, res.Pixels()),
	}
}

// Open returns the number of clusters still accepting events.
func (c *Clusterer) Open() int {
	return len(c.open)
}

// Add feeds the event at input position index. Events must arrive in
// non-decreasing Toa order.
func (c *Clusterer) Add(ev RawEvent, index int) {
	if ev.Centroided() {
		c.Clusters++
		c.emit(passThrough(ev), index)
		return
	}
	c.closeExpired(ev.Toa)

	x, y := int(ev.X), int(ev.Y)
	var neighbours [9]int
	found := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if !c.resolution.Contains(nx, ny) {
				continue
			}
			slot := int(c.occupancy[ny*c.resolution.Width+nx]) - 1
			if slot < 0 || slices.Contains(neighbours[:found], slot) {
				continue
			}
			neighbours[found] = slot
			found++
		}
	}

	var target int
	if found == 0 {
		target = c.newSlot(ev, index)
	} else {
		target = neighbours[0]
		for _, s := range neighbours[1:found] {
			if c.slots[s].first < c.slots[target].first {
				target = s
			}
		}
		for _, s := range neighbours[:found] {
			if s != target {
				c.merge(target, s)
			}
		}
	}

	cl := &c.slots[target]
	key := c.resolution.Key(ev.X, ev.Y)
	cl.pixels = append(cl.pixels, key)
	cl.members++
	cl.tot += uint64(ev.Tot)
	cl.sumX += float64(ev.X)
	cl.sumY += float64(ev.Y)
	cl.sumTotX += float64(ev.Tot) * float64(ev.X)
	cl.sumTotY += float64(ev.Tot) * float64(ev.Y)
	if ev.Toa > cl.last {
		cl.last = ev.Toa
	}
	c.occupancy[key] = int32(target + 1)
}

// Flush closes every open cluster.
func (c *Clusterer) Flush() {
	for len(c.open) > 0 {
		c.close(0)
	}
}

func (c *Clusterer) newSlot(ev RawEvent, index int) int {
	var slot int
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		c.slots = append(c.slots, openCluster{})
		slot = len(c.slots) - 1
	}
	c.slots[slot] = openCluster{
		pixels:  c.slots[slot].pixels[:0],
		first:   index,
		minToa:  ev.Toa,
		last:    ev.Toa,
		trigger: ev.Trigger,
	}
	c.open = append(c.open, slot)
	return slot
}

// merge folds slot src into dst and releases src.
func (c *Clusterer) merge(dst, src int) {
	d, s := &c.slots[dst], &c.slots[src]
	for _, k := range s.pixels {
		c.occupancy[k] = int32(dst + 1)
	}
	d.pixels = append(d.pixels, s.pixels...)
	if s.minToa < d.minToa || (s.minToa == d.minToa && s.first < d.first) {
		d.minToa = s.minToa
		d.trigger = s.trigger
	}
	if s.first < d.first {
		d.first = s.first
	}
	if s.last > d.last {
		d.last = s.last
	}
	d.members += s.members
	d.tot += s.tot
	d.sumX += s.sumX
	d.sumY += s.sumY
	d.sumTotX += s.sumTotX
	d.sumTotY += s.sumTotY
	c.Merged++

	c.release(src)
}

func (c *Clusterer) closeExpired(toa int64) {
	for i := 0; i < len(c.open); {
		if toa-c.slots[c.open[i]].last > c.config.Tolerance {
			c.close(i)
			continue
		}
		i++
	}
}

// close emits the cluster at position i of the open list.
func (c *Clusterer) close(i int) {
	slot := c.open[i]
	cl := &c.slots[slot]
	for _, k := range cl.pixels {
		c.occupancy[k] = 0
	}
	c.Clusters++
	c.emit(cl.hit(c.config.WeightByTot), cl.first)
	c.release(slot)
}

func (c *Clusterer) release(slot int) {
	idx := slices.Index(c.open, slot)
	c.open = slices.Delete(c.open, idx, idx+1)
	c.free = append(c.free, slot)
}

func (cl *openCluster) hit(weightByTot bool) Hit {
	n := float64(cl.members)
	x, y := cl.sumX/n, cl.sumY/n
	if weightByTot && cl.tot > 0 {
		x = cl.sumTotX / float64(cl.tot)
		y = cl.sumTotY / float64(cl.tot)
	}
	return Hit{
		X:       x,
		Y:       y,
		Toa:     cl.minToa,
		Trigger: cl.trigger,
		Tot:     uint32(min(cl.tot, math.MaxUint32)),
		Size:    uint16(min(cl.members, math.MaxUint16)),
	}
}

// passThrough converts an upstream centroided event into a hit.
func passThrough(ev RawEvent) Hit {
	return Hit{
		X:       float64(ev.X) + float64(ev.SubX)/255,
		Y:       float64(ev.Y) + float64(ev.SubY)/255,
		Toa:     ev.Toa,
		Trigger: ev.Trigger,
		Tot:     ev.Tot,
		Size:    ev.Size,
	}
}

// compareHits orders hits by arrival time then position.
func compareHits(a, b Hit) int {
	switch {
	case a.Toa != b.Toa:
		return cmpOrdered(a.Toa, b.Toa)
	case a.X != b.X:
		return cmpOrdered(a.X, b.X)
	case a.Y != b.Y:
		return cmpOrdered(a.Y, b.Y)
	case a.Tot != b.Tot:
		return cmpOrdered(a.Tot, b.Tot)
	case a.Size != b.Size:
		return cmpOrdered(a.Size, b.Size)
	default:
		return cmpOrdered(a.Trigger, b.Trigger)
	}
}

// SortHits puts hits in canonical order.
func SortHits(hits []Hit) {
	slices.SortFunc(hits, compareHits)
}

// ClusterEvents clusters a time-ordered, dead-pixel filtered event slice in a
// single pass.
func ClusterEvents(events []RawEvent, config ClusterConfig, res Resolution) []Hit {
	hits := make([]Hit, 0, len(events))
	c := NewClusterer(config, res, func(h Hit, _ int) {
		hits = append(hits, h)
	})
	for i, ev := range events {
		c.Add(ev, i)
	}
	c.Flush()
	SortHits(hits)
	return hits
}
