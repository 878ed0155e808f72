// Package checkpoint saves and restores automaton state.
//
// File layout (all integers little-endian):
//
//	magic "LWCK" | version u16 | flags u16 | group u16 | reserved u16
//	modulus u64 | step u64 | counter i64 | limb_count u64 | body_len u64
//	previous word: group × u64 (big-endian word order)
//	body: body_len bytes, limb_count × u64 lowest limb first, zstd frame if flagged
//	crc32c u32 over every preceding byte
//
// A file cut short anywhere decodes to ErrTruncated.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/limbwalk/internal/fixmod"
	"github.com/roach88/limbwalk/internal/limbs"
)

const (
	// Magic identifies a checkpoint file.
	Magic = "LWCK"

	// Version is the codec version written by Encode.
	Version = 1

	// FlagCompressed marks a zstd-compressed body.
	FlagCompressed = 1 << 0

	headerSize = 4 + 2*4 + 8*5
	maxGroup   = 64
)

var (
	ErrTruncated          = errors.New("checkpoint truncated")
	ErrBadMagic           = errors.New("not a checkpoint file")
	ErrUnsupportedVersion = errors.New("unsupported checkpoint version")
	ErrChecksum           = errors.New("checkpoint checksum mismatch")
	ErrModulusMismatch    = errors.New("checkpoint limb modulus mismatch")
	ErrCorrupt            = errors.New("checkpoint corrupt")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Record is the persisted automaton state.
type Record struct {
	Step     uint64
	Counter  int64
	Group    int
	Previous []uint64 // word produced by the last completed step
	Limbs    []uint64 // store limbs, lowest first
}

// Store rebuilds the Digit Store with its cursor at 0.
func (r *Record) Store() (*limbs.Store, error) {
	s, err := limbs.FromLimbs(r.Limbs)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return s, nil
}

// Header is the fixed-size part of a checkpoint.
type Header struct {
	Version   uint16
	Flags     uint16
	Group     int
	Modulus   uint64
	Step      uint64
	Counter   int64
	LimbCount uint64
	BodyLen   uint64
}

// Compressed reports whether the body is a zstd frame.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Encode writes rec to w and returns the number of bytes written.
func Encode(w io.Writer, rec *Record, compress bool) (int64, error) {
	if rec.Group < 1 || rec.Group > maxGroup || len(rec.Previous) != rec.Group {
		return 0, fmt.Errorf("checkpoint: group %d with %d previous words", rec.Group, len(rec.Previous))
	}

	body := make([]byte, 8*len(rec.Limbs))
	for i, l := range rec.Limbs {
		binary.LittleEndian.PutUint64(body[8*i:], l)
	}
	var flags uint16
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return 0, fmt.Errorf("checkpoint: zstd: %w", err)
		}
		body = enc.EncodeAll(body, nil)
		enc.Close()
		flags |= FlagCompressed
	}

	crc := crc32.New(castagnoli)
	cw := &countingWriter{w: io.MultiWriter(w, crc)}

	buf := make([]byte, headerSize+8*rec.Group)
	copy(buf, Magic)
	binary.LittleEndian.PutUint16(buf[4:], Version)
	binary.LittleEndian.PutUint16(buf[6:], flags)
	binary.LittleEndian.PutUint16(buf[8:], uint16(rec.Group))
	binary.LittleEndian.PutUint64(buf[12:], fixmod.M)
	binary.LittleEndian.PutUint64(buf[20:], rec.Step)
	binary.LittleEndian.PutUint64(buf[28:], uint64(rec.Counter))
	binary.LittleEndian.PutUint64(buf[36:], uint64(len(rec.Limbs)))
	binary.LittleEndian.PutUint64(buf[44:], uint64(len(body)))
	for i, p := range rec.Previous {
		binary.LittleEndian.PutUint64(buf[headerSize+8*i:], p)
	}

	if _, err := cw.Write(buf); err != nil {
		return cw.n, fmt.Errorf("checkpoint: write header: %w", err)
	}
	if _, err := cw.Write(body); err != nil {
		return cw.n, fmt.Errorf("checkpoint: write body: %w", err)
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	n, err := w.Write(trailer[:])
	total := cw.n + int64(n)
	if err != nil {
		return total, fmt.Errorf("checkpoint: write checksum: %w", err)
	}
	return total, nil
}

// ReadHeader decodes the fixed header only.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, readErr(err)
	}
	return parseHeader(buf[:])
}

func parseHeader(buf []byte) (Header, error) {
	if string(buf[:4]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:   binary.LittleEndian.Uint16(buf[4:]),
		Flags:     binary.LittleEndian.Uint16(buf[6:]),
		Group:     int(binary.LittleEndian.Uint16(buf[8:])),
		Modulus:   binary.LittleEndian.Uint64(buf[12:]),
		Step:      binary.LittleEndian.Uint64(buf[20:]),
		Counter:   int64(binary.LittleEndian.Uint64(buf[28:])),
		LimbCount: binary.LittleEndian.Uint64(buf[36:]),
		BodyLen:   binary.LittleEndian.Uint64(buf[44:]),
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Modulus != fixmod.M {
		return h, fmt.Errorf("%w: %d", ErrModulusMismatch, h.Modulus)
	}
	if h.Group < 1 || h.Group > maxGroup {
		return h, fmt.Errorf("%w: group %d", ErrCorrupt, h.Group)
	}
	if !h.Compressed() && h.BodyLen != 8*h.LimbCount {
		return h, fmt.Errorf("%w: body length %d for %d limbs", ErrCorrupt, h.BodyLen, h.LimbCount)
	}
	return h, nil
}

// Decode reads a full checkpoint and verifies its checksum.
func Decode(r io.Reader) (*Record, error) {
	crc := crc32.New(castagnoli)
	tr := io.TeeReader(r, crc)

	var hbuf [headerSize]byte
	if _, err := io.ReadFull(tr, hbuf[:]); err != nil {
		return nil, readErr(err)
	}
	h, err := parseHeader(hbuf[:])
	if err != nil {
		return nil, err
	}

	prev := make([]byte, 8*h.Group)
	if _, err := io.ReadFull(tr, prev); err != nil {
		return nil, readErr(err)
	}

	// Grow the body as it arrives so a corrupt length cannot force a huge
	// allocation up front.
	var body bytes.Buffer
	n, err := body.ReadFrom(io.LimitReader(tr, int64(h.BodyLen)))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read body: %w", err)
	}
	if uint64(n) != h.BodyLen {
		return nil, ErrTruncated
	}

	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, readErr(err)
	}
	if binary.LittleEndian.Uint32(trailer[:]) != crc.Sum32() {
		return nil, ErrChecksum
	}

	raw := body.Bytes()
	if h.Compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: zstd: %w", err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if uint64(len(raw)) != 8*h.LimbCount {
		return nil, fmt.Errorf("%w: %d body bytes for %d limbs", ErrCorrupt, len(raw), h.LimbCount)
	}

	rec := &Record{
		Step:     h.Step,
		Counter:  h.Counter,
		Group:    h.Group,
		Previous: make([]uint64, h.Group),
		Limbs:    make([]uint64, h.LimbCount),
	}
	for i := range rec.Previous {
		rec.Previous[i] = binary.LittleEndian.Uint64(prev[8*i:])
	}
	for i := range rec.Limbs {
		rec.Limbs[i] = binary.LittleEndian.Uint64(raw[8*i:])
	}
	return rec, nil
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return fmt.Errorf("checkpoint: read: %w", err)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
