package tpx3

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
)

// rawBursts drops upstream centroided events so every hit is a local cluster.
func rawBursts(seed int64, bursts int) []RawEvent {
	events := burstEvents(seed, bursts)
	return slices.DeleteFunc(events, RawEvent.Centroided)
}

func process(t *testing.T, events []RawEvent, known []PixelKey, config Configuration) *Result {
	t.Helper()
	result, err := Process(slices.Clone(events), known, config)
	require.NoError(t, err)
	return result
}

func TestProcessConservesEvents(t *testing.T) {
	t.Parallel()

	events := rawBursts(3, 400)
	result := process(t, events, nil, testConfiguration())

	var members int
	for _, h := range result.Hits {
		members += int(h.Size)
	}
	assert.Equal(t, len(events)-result.Masked, members)
	assert.Equal(t, uint64(len(result.Hits)), result.Accumulator.Hits)
	assert.Zero(t, result.Accumulator.Outside)
	assert.Equal(t, uint64(len(result.Hits)), result.Accumulator.TIC.Total())
	assert.Equal(t, len(events), result.Events)
}

func TestProcessIsDeterministic(t *testing.T) {
	t.Parallel()

	events := burstEvents(11, 300)
	first := process(t, events, nil, testConfiguration())
	second := process(t, events, nil, testConfiguration())

	if diff := cmp.Diff(first.Hits, second.Hits); diff != "" {
		t.Errorf("hits differ between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Accumulator.TIC.Counts, second.Accumulator.TIC.Counts)
	assert.Equal(t, first.Grids, second.Grids)
}

func TestProcessIsWorkerIndependent(t *testing.T) {
	t.Parallel()

	events := burstEvents(5, 500)
	config := testConfiguration()
	want := process(t, events, nil, config)

	for _, workers := range []int{2, 3, 8} {
		config.NumWorkers = workers
		got := process(t, events, nil, config)
		if diff := cmp.Diff(want.Hits, got.Hits); diff != "" {
			t.Errorf("%d workers (-sequential +parallel):\n%s", workers, diff)
		}
		assert.Equal(t, want.Mask.Keys(), got.Mask.Keys(), "workers=%d", workers)
		assert.Equal(t, want.Grids, got.Grids, "workers=%d", workers)
	}
}

func TestProcessKnownPixelsOnlyRemoveEvents(t *testing.T) {
	t.Parallel()

	events := rawBursts(21, 300)
	config := testConfiguration()
	base := process(t, events, nil, config)

	perPixel := make(map[PixelKey]int)
	for _, ev := range events {
		perPixel[res16.Key(ev.X, ev.Y)]++
	}
	var known PixelKey
	found := false
	for k := PixelKey(0); int(k) < res16.Pixels(); k++ {
		if perPixel[k] > 0 && !base.Mask.IsDead(k) {
			known, found = k, true
			break
		}
	}
	require.True(t, found)

	masked := process(t, events, []PixelKey{known}, config)
	assert.Equal(t, base.Masked+perPixel[known], masked.Masked)
	assert.Equal(t, base.Mask.Count()+1, masked.Mask.Count())
	assert.LessOrEqual(t, masked.Accumulator.TIC.Total(), base.Accumulator.TIC.Total())
}

func TestProcessRejectsInvalidConfiguration(t *testing.T) {
	t.Parallel()

	config := testConfiguration()
	config.BinWidth = 0
	_, err := Process(nil, nil, config)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "bin_width", configErr.Field)
}

func TestProcessEmptyCapture(t *testing.T) {
	t.Parallel()

	result := process(t, nil, nil, testConfiguration())
	assert.Empty(t, result.Hits)
	assert.Empty(t, result.Grids)
	assert.Zero(t, result.Accumulator.TIC.Total())
}

func endToEndCapture(t *testing.T) []byte {
	t.Helper()
	return capture(
		chunkHeader(0, 80),
		encodeTDCPacket(t, 1_000_000),
		encodeHitPacket(t, 5, 5, 1_500_000, 100),
		encodeHitPacket(t, 5, 6, 1_550_000, 100),
		encodeHitPacket(t, 12, 2, 3_600_000, 50),
		encodeTDCPacket(t, 10_000_000),
		encodeHitPacket(t, 9, 9, 10_250_000, 25),
	)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	result, err := Run(bytes.NewReader(endToEndCapture(t)), nil, testConfiguration())
	require.NoError(t, err)

	want := []Hit{
		{X: 5, Y: 5.5, Toa: 1_500_000, Trigger: 1_000_000, Tot: 200, Size: 2},
		{X: 12, Y: 2, Toa: 3_600_000, Trigger: 1_000_000, Tot: 50, Size: 1},
		{X: 9, Y: 9, Toa: 10_250_000, Trigger: 10_000_000, Tot: 25, Size: 1},
	}
	if diff := cmp.Diff(want, result.Hits); diff != "" {
		t.Errorf("hits mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, result.Stats.Hits)
	assert.Equal(t, 2, result.Stats.Tdcs)
	assert.Zero(t, result.Masked)

	// tof 0.5 us and 0.25 us share bin 0, 2.6 us lands in bin 2.
	require.Len(t, result.Grids, 2)
	assert.Equal(t, int64(0), result.Grids[0].Bin)
	assert.Equal(t, uint64(2), result.Grids[0].Total())
	assert.Equal(t, int64(2), result.Grids[1].Bin)
	assert.Equal(t, uint32(1), result.Grids[1].At(12, 2))
}

func TestRunFileCompressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := endToEndCapture(t)

	plainPath := filepath.Join(dir, "run_a.tpx3")
	require.NoError(t, os.WriteFile(plainPath, data, 0o644))

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	zstPath := filepath.Join(dir, "run_b.tpx3.zst")
	require.NoError(t, os.WriteFile(zstPath, compressed.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	captures, err := FindCaptures(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{plainPath, zstPath}, captures)

	plain, err := RunFile(plainPath, nil, testConfiguration())
	require.NoError(t, err)
	fromZst, err := RunFile(zstPath, nil, testConfiguration())
	require.NoError(t, err)

	assert.Equal(t, "run_a", plain.Dataset)
	assert.Equal(t, "run_b", fromZst.Dataset)
	assert.Equal(t, plain.Hits, fromZst.Hits)
	assert.Equal(t, plain.Stats, fromZst.Stats)
}

func TestRunFileMissing(t *testing.T) {
	t.Parallel()

	_, err := RunFile(filepath.Join(t.TempDir(), "absent.tpx3"), nil, testConfiguration())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDatasetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "scan_01", DatasetName("/data/scan_01.tpx3"))
	assert.Equal(t, "scan_02", DatasetName("scan_02.tpx3.zst"))
	assert.Equal(t, "other", DatasetName("dir/other.bin"))
}

type recordingLogger struct {
	mu      sync.Mutex
	modules []string
}

func (l *recordingLogger) Info(_ string, module string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules = append(l.modules, module)
}

func (l *recordingLogger) Error(string) {}

// Not parallel: it swaps the package logger.
func TestProcessLogsWithCallerVerbosity(t *testing.T) {
	recorder := &recordingLogger{}
	SetLogger(recorder)
	t.Cleanup(func() { SetLogger(nil) })

	config := testConfiguration()
	config.Verbosity = 1
	_, err := Run(bytes.NewReader(endToEndCapture(t)), nil, config)
	require.NoError(t, err)
	assert.Contains(t, recorder.modules, "reader")
	assert.Contains(t, recorder.modules, "deadpixels")

	recorder.modules = nil
	process(t, rawBursts(2, 20), nil, testConfiguration())
	assert.Empty(t, recorder.modules)
}
