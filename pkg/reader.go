package tpx3

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	RecordSize = 8

	TdcLimit  int64 = 107_374_182_400_000 // ps
	HitLimit  int64 = 26_843_545_600_000  // ps
	rollLimit int64 = 26_000_000_000_000
	rollCheck int64 = 100_000_000_000

	readBufferSize = 1 << 20
)

// Record tags held in the top nibble of a packet.
const (
	tagControl1 = 0x4
	tagTDC      = 0x6
	tagControl2 = 0x7
	tagHit      = 0xB
	tagBlob     = 0xC
)

var chunkMagic = [4]byte{'T', 'P', 'X', '3'}

type ReaderStats struct {
	Records      int
	Hits         int
	Blobs        int
	Tdcs         int
	Control      int
	ChunkHeaders int
}

// Reader decodes a Timepix3 capture into RawEvents in file order. It is lazy
// and can only restart from the beginning of the stream.
type Reader struct {
	src        io.Reader
	buf        *bufio.Reader
	resolution Resolution
	record     [RecordSize]byte
	offset     int64
	stats      ReaderStats

	tdcRolls int64
	hitRolls int64
	prevTdc  int64
	prevToa  int64
	seenTdc  bool

	pending    RawEvent
	hasPending bool
	attachable bool
}

func NewReader(src io.Reader, res Resolution) *Reader {
	return &Reader{
		src:        src,
		buf:        bufio.NewReaderSize(src, readBufferSize),
		resolution: res,
	}
}

func (r *Reader) Stats() ReaderStats {
	return r.stats
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Rewind restarts decoding from the first record.
func (r *Reader) Rewind() error {
	seeker, ok := r.src.(io.Seeker)
	if !ok {
		return ErrNotRewindable
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return err
	}
	*r = Reader{
		src:        r.src,
		buf:        bufio.NewReaderSize(r.src, readBufferSize),
		resolution: r.resolution,
	}
	return nil
}

// Next returns the next pixel event, or io.EOF once the stream is exhausted.
// Malformed input yields a *FormatError.
func (r *Reader) Next() (RawEvent, error) {
	for {
		start := r.offset
		packet, err := r.readRecord()
		if err == io.EOF {
			if r.hasPending {
				r.hasPending = false
				r.attachable = false
				return r.pending, nil
			}
			return RawEvent{}, io.EOF
		}
		if err != nil {
			return RawEvent{}, err
		}
		r.stats.Records++

		if [4]byte(r.record[:4]) == chunkMagic {
			r.stats.ChunkHeaders++
			continue
		}

		switch packet >> 60 {
		case tagTDC:
			tdc := parseTdcPacket(packet)
			if r.seenTdc && tdc < r.prevTdc {
				r.tdcRolls++
			}
			r.prevTdc = tdc
			r.seenTdc = true
			r.attachable = false
			r.stats.Tdcs++
		case tagHit:
			ev, err := r.decodeHit(packet, start)
			if err != nil {
				return RawEvent{}, err
			}
			r.stats.Hits++
			if r.hasPending {
				out := r.pending
				r.pending = ev
				r.attachable = true
				return out, nil
			}
			r.pending = ev
			r.hasPending = true
			r.attachable = true
		case tagBlob:
			if !r.hasPending || !r.attachable {
				return RawEvent{}, &FormatError{Offset: start, Reason: "cluster extension record without a preceding hit"}
			}
			applyBlobPacket(&r.pending, packet)
			r.stats.Blobs++
		case tagControl1, tagControl2:
			r.stats.Control++
		default:
			return RawEvent{}, &FormatError{Offset: start, Reason: fmt.Sprintf("unknown record type 0x%x", packet>>60)}
		}
	}
}

func (r *Reader) readRecord() (uint64, error) {
	n, err := io.ReadFull(r.buf, r.record[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, &FormatError{Offset: r.offset, Reason: fmt.Sprintf("truncated record: %d trailing bytes", n)}
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, err
	}
	r.offset += RecordSize
	return binary.LittleEndian.Uint64(r.record[:]), nil
}

func (r *Reader) decodeHit(packet uint64, offset int64) (RawEvent, error) {
	col, row, tot, toa := parseHitPacket(packet)
	if !r.resolution.Contains(int(col), int(row)) {
		return RawEvent{}, &FormatError{Offset: offset, Reason: fmt.Sprintf("pixel (%d,%d) outside %dx%d detector", col, row, r.resolution.Width, r.resolution.Height)}
	}

	trigger := int64(0)
	if r.seenTdc {
		trigger = r.prevTdc + r.tdcRolls*TdcLimit
	}
	if r.rolledOver(toa, trigger) {
		r.hitRolls++
	}
	r.prevToa = toa

	return RawEvent{
		X:       uint16(col),
		Y:       uint16(row),
		Toa:     toa + r.hitRolls*HitLimit,
		Tot:     tot,
		Trigger: trigger,
	}, nil
}

// rolledOver decides whether the 40-bit hit clock wrapped between the previous
// hit and this one. With triggers present the wrap must also keep the hit close
// to the current trigger time.
func (r *Reader) rolledOver(toa int64, trigger int64) bool {
	if toa+rollCheck >= r.prevToa {
		return false
	}
	if !r.seenTdc {
		return true
	}
	return toa+(r.hitRolls+1)*HitLimit-trigger < rollLimit
}

// parseHitPacket extracts column, row, time-over-threshold (ns) and
// time-of-arrival (ps) from a pixel hit packet.
func parseHitPacket(p uint64) (uint8, uint8, uint32, int64) {
	pix := (p & 0x0000_7000_0000_0000) >> 44
	col := (p&0x0FE0_0000_0000_0000)>>52 + pix>>2
	row := (p&0x001F_8000_0000_0000)>>45 + pix&0x3
	tot := ((p >> 20) & 0x3FF) * 25
	ftoa := ^(p >> 16) & 0xF
	coa := ((p>>30)&0x3FFF<<4 | ftoa) * 25_000
	toa := (p&0xFFFF)*409_600_000 + coa>>4
	return uint8(col), uint8(row), uint32(tot), int64(toa)
}

// parseTdcPacket returns the trigger time in ps.
func parseTdcPacket(p uint64) int64 {
	coarse := (p >> 12) & 0xFFFF_FFFF
	expansion := ((p>>5)&0xF - 1) << 9
	fine := expansion / 12
	trigTime := (p & 0x0000_0000_0000_0E00) | (fine & 0x0000_0000_0000_01FF)
	var addBit uint64
	if !(expansion%12 == 0 && expansion < 1023) {
		addBit = 1
	}
	tdc := (coarse*1000 + (trigTime*1000)/4096) * 25
	return int64(tdc + addBit)
}

// applyBlobPacket folds a cluster extension record into the preceding hit.
func applyBlobPacket(ev *RawEvent, p uint64) {
	ev.Tot += uint32(((p >> 16) & 0x00FF_FFFF) * 1024 * 25)
	ev.SubX = uint8((p >> 48) & 0xFF)
	ev.SubY = uint8((p >> 40) & 0xFF)
	ev.Size = uint16(p & 0xFFFF)
}

// ReadAll decodes a whole capture.
func ReadAll(src io.Reader, res Resolution) ([]RawEvent, ReaderStats, error) {
	reader := NewReader(src, res)
	events := make([]RawEvent, 0, 1024)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return events, reader.Stats(), err
		}
		events = append(events, ev)
	}
	return events, reader.Stats(), nil
}
