package heapdump

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/bumpspace/internal/conv"
	"github.com/hupe1980/bumpspace/internal/mmap"
	"github.com/hupe1980/bumpspace/object"
)

// maxObjectSize bounds a single record when reading untrusted input.
const maxObjectSize = 1 << 32

// Dump is a decoded heap dump.
type Dump struct {
	Codec         Codec
	Name          string
	Begin         uint64
	End           uint64
	Limit         uint64
	Capacity      uint64
	MainBlockSize uint64
	Blocks        []uint64
	Objects       []Record
}

// Record is one object of a dump.
type Record struct {
	// Offset is the object's distance from Begin.
	Offset uint64
	// Data holds the object bytes, header included.
	Data []byte
}

// Class returns the class id of a record written with the default
// object.Header layout, or 0 if the record is too short.
func (r Record) Class() uint32 {
	if len(r.Data) < object.HeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(r.Data[0:4])
}

// Read decodes a dump from r.
func Read(r io.Reader) (*Dump, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read heap dump header: %w", err)
	}
	if [4]byte(hdr[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, v)
	}
	codec := Codec(hdr[6])

	zr, closeFn, err := newDecompressor(r, codec)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	dec := decoder{r: bufio.NewReader(zr)}

	d := &Dump{Codec: codec}
	d.Name = string(dec.bytes(int(dec.u16())))
	d.Begin = dec.u64()
	d.End = dec.u64()
	d.Limit = dec.u64()
	d.Capacity = dec.u64()
	d.MainBlockSize = dec.u64()

	blockCount := dec.u32()
	if dec.err == nil {
		n, err := conv.Uint64ToInt(uint64(blockCount))
		if err != nil {
			return nil, err
		}
		d.Blocks = make([]uint64, 0, min(n, 1<<16))
		for range n {
			d.Blocks = append(d.Blocks, dec.u64())
		}
	}

	for dec.err == nil {
		switch tag := dec.u8(); tag {
		case tagObject:
			offset := dec.u64()
			size := dec.u64()
			if size > maxObjectSize {
				return nil, fmt.Errorf("%w: object at offset %d has size %d", ErrInvalidFormat, offset, size)
			}
			n, err := conv.Uint64ToInt(size)
			if err != nil {
				return nil, err
			}
			d.Objects = append(d.Objects, Record{Offset: offset, Data: dec.bytes(n)})
		case tagEnd:
			if count := dec.u64(); dec.err == nil && count != uint64(len(d.Objects)) {
				return nil, fmt.Errorf("%w: trailer counts %d objects, read %d", ErrInvalidFormat, count, len(d.Objects))
			}
			if dec.err != nil {
				break
			}
			return d, nil
		default:
			if dec.err == nil {
				return nil, fmt.Errorf("%w: unknown record tag %d", ErrInvalidFormat, tag)
			}
		}
	}
	if dec.err == io.EOF {
		dec.err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read heap dump: %w", dec.err)
}

// ReadFile decodes the dump stored at path. The file is memory-mapped
// rather than read through a buffer.
func ReadFile(path string) (*Dump, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	_ = m.Advise(mmap.AccessSequential)
	return Read(bytes.NewReader(m.Bytes()))
}

// decoder keeps the first read error.
type decoder struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (d *decoder) fill(n int) []byte {
	if d.err != nil {
		return nil
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		d.err = err
		return nil
	}
	return d.buf[:n]
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.err = err
		return nil
	}
	return p
}

func (d *decoder) u8() byte {
	if b := d.fill(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.fill(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.fill(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.fill(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
