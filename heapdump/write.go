package heapdump

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/internal/conv"
	"github.com/hupe1980/bumpspace/internal/fs"
	"github.com/hupe1980/bumpspace/resource"
)

var (
	magic         = [4]byte{'B', 'S', 'H', 'D'}
	formatVersion = uint16(1)
)

const headerLen = 8

const (
	tagEnd    byte = 0
	tagObject byte = 1
)

var (
	// ErrInvalidFormat is returned when the input is not a heap dump.
	ErrInvalidFormat = errors.New("heapdump: invalid format")
	// ErrUnsupportedCodec is returned for unknown compression codecs.
	ErrUnsupportedCodec = errors.New("heapdump: unsupported codec")
)

type options struct {
	codec      Codec
	controller *resource.Controller
}

// Option configures Write.
type Option func(*options)

// WithCodec selects the body compression. Defaults to CodecZSTD.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithIOLimit throttles the output through the controller's IO budget.
func WithIOLimit(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// Stats describes a written dump.
type Stats struct {
	Objects     int
	ObjectBytes uint64
}

// Write walks s and writes a dump to w.
//
// The walk gives the same guarantees as bumpspace.Space.Walk: callers that
// need an exact dump must stop allocation first.
func Write(ctx context.Context, w io.Writer, s *bumpspace.Space, optFns ...Option) (Stats, error) {
	opts := options{codec: CodecZSTD}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.controller != nil {
		w = resource.NewRateLimitedWriter(ctx, w, opts.controller)
	}

	var hdr [headerLen]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], formatVersion)
	hdr[6] = byte(opts.codec)
	if _, err := w.Write(hdr[:]); err != nil {
		return Stats{}, fmt.Errorf("failed to write heap dump header: %w", err)
	}

	zw, err := newCompressor(w, opts.codec)
	if err != nil {
		return Stats{}, err
	}
	bw := bufio.NewWriter(zw)
	enc := encoder{w: bw}

	snap := s.BlockSizes()
	nameLen, err := conv.IntToUint16(len(s.Name()))
	if err != nil {
		return Stats{}, fmt.Errorf("heapdump: space name: %w", err)
	}
	blockCount, err := conv.IntToUint32(len(snap.Blocks))
	if err != nil {
		return Stats{}, fmt.Errorf("heapdump: block count: %w", err)
	}

	enc.u16(nameLen)
	enc.bytes([]byte(s.Name()))
	enc.u64(uint64(s.Begin()))
	enc.u64(uint64(s.Begin() + snap.Total()))
	enc.u64(uint64(s.Limit()))
	enc.u64(uint64(s.Capacity()))
	enc.u64(uint64(snap.MainBlockSize))
	enc.u32(blockCount)
	for _, size := range snap.Blocks {
		enc.u64(uint64(size))
	}

	var stats Stats
	for o := range s.Objects() {
		if enc.err != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			enc.err = err
			break
		}
		enc.u8(tagObject)
		enc.u64(uint64(o.Addr - s.Begin()))
		enc.u64(uint64(o.Size))
		enc.bytes(o.Bytes())
		stats.Objects++
		stats.ObjectBytes += uint64(o.Size)
	}
	enc.u8(tagEnd)
	enc.u64(uint64(stats.Objects))

	if enc.err != nil {
		return stats, fmt.Errorf("failed to write heap dump: %w", enc.err)
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush heap dump: %w", err)
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("failed to close heap dump compressor: %w", err)
	}
	return stats, nil
}

// WriteFile writes a dump of s to path. The dump is written to a temporary
// file in the same directory and renamed into place once complete, so path
// never holds a partial dump.
func WriteFile(ctx context.Context, path string, s *bumpspace.Space, optFns ...Option) (Stats, error) {
	return writeFile(ctx, fs.Default, path, s, optFns...)
}

func writeFile(ctx context.Context, fsys fs.FileSystem, path string, s *bumpspace.Space, optFns ...Option) (stats Stats, err error) {
	f, err := fsys.CreateTemp(filepath.Dir(path), ".heapdump-*")
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(f.Name())
		}
	}()

	stats, err = Write(ctx, f, s, optFns...)
	if err != nil {
		_ = f.Close()
		return stats, err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return stats, fmt.Errorf("failed to sync heap dump: %w", err)
	}
	if err = f.Close(); err != nil {
		return stats, fmt.Errorf("failed to close heap dump: %w", err)
	}
	if err = fsys.Rename(f.Name(), path); err != nil {
		return stats, fmt.Errorf("failed to publish heap dump: %w", err)
	}
	return stats, nil
}

// encoder keeps the first write error.
type encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (e *encoder) bytes(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) u8(v byte) {
	e.buf[0] = v
	e.bytes(e.buf[:1])
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	e.bytes(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.bytes(e.buf[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	e.bytes(e.buf[:8])
}
