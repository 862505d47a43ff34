package tpx3

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// burstEvents generates time-ordered bursts of activity. Some bursts are
// separated by long silences, others run into each other so chunk
// boundaries fall inside open clusters.
func burstEvents(seed int64, bursts int) []RawEvent {
	rng := rand.New(rand.NewSource(seed))
	events := make([]RawEvent, 0, bursts*12)
	toa := int64(0)
	for b := 0; b < bursts; b++ {
		if rng.Intn(3) == 0 {
			toa += 50_000
		} else {
			toa += 1_000_000 + rng.Int63n(2_000_000)
		}
		cx, cy := rng.Intn(16), rng.Intn(16)
		for n := rng.Intn(12) + 1; n > 0; n-- {
			x := min(max(cx+rng.Intn(3)-1, 0), 15)
			y := min(max(cy+rng.Intn(3)-1, 0), 15)
			toa += rng.Int63n(40_000)
			ev := RawEvent{X: uint16(x), Y: uint16(y), Toa: toa, Tot: uint32(rng.Intn(40)) * 25, Trigger: toa / 5_000_000 * 5_000_000}
			if rng.Intn(50) == 0 {
				ev.Size = uint16(rng.Intn(4) + 2)
				ev.SubX = uint8(rng.Intn(256))
			}
			events = append(events, ev)
		}
	}
	return events
}

func TestClusterParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	for _, seed := range []int64{1, 7, 42, 1234} {
		events := burstEvents(seed, 300)
		want := ClusterEvents(events, testClusterConfig, res16)
		for workers := 1; workers <= 8; workers++ {
			got, err := ClusterParallel(events, testClusterConfig, res16, workers)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("seed %d, %d workers (-sequential +parallel):\n%s", seed, workers, diff)
			}
		}
	}
}

func TestClusterParallelWithoutQuietGaps(t *testing.T) {
	t.Parallel()

	// One continuous stream, so no chunk has a gap and everything is replayed.
	events := make([]RawEvent, 0, 200)
	for i := 0; i < 200; i++ {
		events = append(events, rawEvent(uint16(i%4), uint16(i%3), int64(i)*10_000, 25))
	}
	want := ClusterEvents(events, testClusterConfig, res16)
	got, err := ClusterParallel(events, testClusterConfig, res16, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClusterParallelCentroidedTail(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		rawEvent(1, 1, 0, 25),
		rawEvent(1, 2, 10, 25),
		rawEvent(8, 8, 20, 25),
		rawEvent(8, 9, 30, 25),
		{X: 3, Y: 3, Toa: 10_000_000, Tot: 25, Size: 3},
		{X: 4, Y: 3, Toa: 10_000_010, Tot: 25, Size: 3},
		{X: 5, Y: 3, Toa: 10_000_020, Tot: 25, Size: 3},
		{X: 6, Y: 3, Toa: 10_000_030, Tot: 25, Size: 3},
	}
	want := ClusterEvents(events, testClusterConfig, res16)
	require.Len(t, want, 6)
	for workers := 2; workers <= 4; workers++ {
		got, err := ClusterParallel(events, testClusterConfig, res16, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestQuietGap(t *testing.T) {
	t.Parallel()

	events := []RawEvent{
		{Toa: 0}, {Toa: 50}, {Toa: 100}, {Toa: 500}, {Toa: 550}, {Toa: 1000},
	}
	assert.Equal(t, 3, quietGap(events, 0, len(events), 100))
	assert.Equal(t, 3, quietGap(events, 3, len(events), 100), "a gap right at start counts")
	assert.Equal(t, 5, quietGap(events, 4, len(events), 100))
	assert.Equal(t, 3, quietGap(events, 1, 3, 100), "no gap returns end")
	assert.Equal(t, 6, quietGap(events, 0, len(events), 1000))
}

func TestSplitEvenly(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []chunk{{0, 0, 4}, {1, 4, 7}, {2, 7, 10}}, splitEvenly(10, 3))
	assert.Equal(t, []chunk{{0, 0, 1}, {1, 1, 2}}, splitEvenly(2, 8))
	assert.Equal(t, []chunk{{0, 0, 0}}, splitEvenly(0, 4))
	assert.Equal(t, []chunk{{0, 0, 5}}, splitEvenly(5, 0))
}
