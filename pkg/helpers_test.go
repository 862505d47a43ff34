package tpx3

import (
	"encoding/binary"
	"testing"
)

// encodeHitPacket builds a pixel hit record. toa must be a multiple of 25 ns
// below HitLimit so the fine ToA field can stay at zero.
func encodeHitPacket(t *testing.T, col, row uint8, toa int64, tot uint32) uint64 {
	t.Helper()
	if toa < 0 || toa >= HitLimit || toa%25_000 != 0 {
		t.Fatalf("unencodable toa %d", toa)
	}
	c, r := uint64(col), uint64(row)
	pix := (c%2)<<2 | r%4
	spidr := uint64(toa) / 409_600_000
	cta := (uint64(toa) % 409_600_000) / 25_000
	return uint64(tagHit)<<60 |
		(c&^1)<<52 |
		(r&^3)<<45 |
		pix<<44 |
		cta<<30 |
		uint64(tot/25)<<20 |
		0xF<<16 |
		spidr
}

// encodeTDCPacket builds a trigger record. tdc must be a multiple of 25 ns.
func encodeTDCPacket(t *testing.T, tdc int64) uint64 {
	t.Helper()
	if tdc < 0 || tdc%25_000 != 0 {
		t.Fatalf("unencodable tdc %d", tdc)
	}
	coarse := uint64(tdc) / 25_000
	return uint64(tagTDC)<<60 | coarse<<12 | 1<<5
}

func encodeBlobPacket(subX, subY uint8, totCoarse uint32, size uint16) uint64 {
	return 0xCA<<56 | uint64(subX)<<48 | uint64(subY)<<40 | uint64(totCoarse&0x00FF_FFFF)<<16 | uint64(size)
}

func chunkHeader(chip byte, size uint16) uint64 {
	var b [RecordSize]byte
	copy(b[:], chunkMagic[:])
	b[4] = chip
	binary.LittleEndian.PutUint16(b[6:], size)
	return binary.LittleEndian.Uint64(b[:])
}

func capture(packets ...uint64) []byte {
	data := make([]byte, 0, len(packets)*RecordSize)
	for _, p := range packets {
		data = binary.LittleEndian.AppendUint64(data, p)
	}
	return data
}

func testConfiguration() Configuration {
	config := DefaultConfiguration()
	config.Width = 16
	config.Height = 16
	config.ClusterTolerance = 100_000
	config.BinWidth = 1_000_000
	config.MinBinHits = 1
	return config
}

func rawEvent(x, y uint16, toa int64, tot uint32) RawEvent {
	return RawEvent{X: x, Y: y, Toa: toa, Tot: tot}
}
