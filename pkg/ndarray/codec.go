package ndarray

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// codecMagic prefixes every encoded array.
var codecMagic = [4]byte{'N', 'D', 'A', '1'}

// MarshalBinary encodes d as magic, rank, dims and little-endian values.
func (d *Dense) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(8 + 8*len(d.shape) + 8*len(d.data))
	buf.Write(codecMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(d.shape)))
	for _, s := range d.shape {
		_ = binary.Write(&buf, binary.LittleEndian, int64(s))
	}
	b := make([]byte, 8)
	for _, v := range d.data {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data written by MarshalBinary.
func (d *Dense) UnmarshalBinary(data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[:4], codecMagic[:]) {
		return errors.New(errors.ErrCodeInvalidInput, "not an encoded array")
	}
	rank := int(binary.LittleEndian.Uint32(data[4:8]))
	off := 8
	if len(data) < off+8*rank {
		return errors.New(errors.ErrCodeInvalidInput, "truncated array header")
	}
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = int(int64(binary.LittleEndian.Uint64(data[off:])))
		off += 8
	}
	n, err := size(shape)
	if err != nil {
		return err
	}
	if len(data)-off != 8*n {
		return errors.New(errors.ErrCodeInvalidInput, "array body has %d bytes, want %d", len(data)-off, 8*n)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	d.shape, d.data = shape, vals
	return nil
}
