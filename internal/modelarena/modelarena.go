// Package modelarena implements the upper index's wire format (spec C5): a
// reserved header region holding the trained submodels' routing keys and
// byte offsets, followed by one length-prefixed blob per submodel. This is
// the format the memory node ships to a compute node at startup so the
// compute node's Learned Cache (C7) can reconstruct the full upper index
// without talking to the memory node again until a retrain.
package modelarena

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nmxmxh/rolex/internal/leaftable"
	"github.com/nmxmxh/rolex/internal/submodel"
)

const (
	// UpperReserved is the fixed size of the header region prefixing every
	// model arena buffer (32 MiB, spec.md §4.5).
	UpperReserved = 32 * 1024 * 1024

	numModelsOffset    = 0
	modelKeysOffset    = 8
	modelOffsetsOffset = 16 * 1024 * 1024

	maxModelKeys    = (modelOffsetsOffset - modelKeysOffset) / 8
	maxModelOffsets = (UpperReserved - modelOffsetsOffset) / 8
)

// maxModels is the largest submodel count the reserved header can index.
var maxModels = minInt(maxModelKeys, maxModelOffsets)

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Params carries the leaf/synonym dimensions needed to reconstruct leaf
// tables on Decode. They are not re-derived from the byte stream because
// LeafCap/SynMax/Epsilon are process-wide config (see internal/config),
// not per-submodel wire state.
type Params struct {
	LeafCap int
	SynMax  int
	Epsilon float64
}

// Encode serializes models into the spec.md §4.5 wire format.
func Encode(models []*submodel.Submodel) ([]byte, error) {
	if len(models) > maxModels {
		return nil, fmt.Errorf("%w: %d models exceeds capacity %d", ErrTooManyModels, len(models), maxModels)
	}

	header := make([]byte, UpperReserved)
	binary.LittleEndian.PutUint64(header[numModelsOffset:numModelsOffset+8], uint64(len(models)))

	var bodies []byte
	cur := uint64(UpperReserved)
	for i, m := range models {
		ko := modelKeysOffset + i*8
		binary.LittleEndian.PutUint64(header[ko:ko+8], m.LastKey)

		oo := modelOffsetsOffset + i*8
		binary.LittleEndian.PutUint64(header[oo:oo+8], cur)

		blob := encodeSubmodel(m)
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(blob)))
		bodies = append(bodies, lenBuf...)
		bodies = append(bodies, blob...)
		cur += uint64(4 + len(blob))
	}

	return append(header, bodies...), nil
}

// encodeSubmodel writes slope, intercept, capacity, ltable_len, then the
// ltable blob itself: entry_count:u32 | entries:[u64] | synonym_count:u32 |
// synonym:[u64]. ltable_len is the byte length of that ltable blob, letting
// a reader skip straight to the next submodel without having decoded this
// one (spec.md §4.5's per-submodel body layout).
func encodeSubmodel(m *submodel.Submodel) []byte {
	entryCount := m.Table.NumSlots()
	synCount := m.Table.SynMax()

	ltableLen := 4 + 8*entryCount + 4 + 8*synCount
	buf := make([]byte, 8+8+8+4+ltableLen)

	off := 0
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Slope))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Intercept))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], m.Capacity)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(ltableLen))
	off += 4

	binary.LittleEndian.PutUint32(buf[off:], uint32(entryCount))
	off += 4
	for i := 0; i < entryCount; i++ {
		binary.LittleEndian.PutUint64(buf[off:], uint64(m.Table.Entry(i)))
		off += 8
	}

	binary.LittleEndian.PutUint32(buf[off:], uint32(synCount))
	off += 4
	for i := 0; i < synCount; i++ {
		binary.LittleEndian.PutUint64(buf[off:], uint64(m.Table.SynonymEntry(i)))
		off += 8
	}

	return buf
}

// Decode parses a model arena buffer produced by Encode back into
// submodels. The leaf table entries are restored as-is; the leaves they
// reference live in a separate leaf arena (local on the memory node, or
// fetched lazily/mirrored by a compute node's Learned Cache).
func Decode(buf []byte, p Params) ([]*submodel.Submodel, error) {
	if len(buf) < UpperReserved {
		return nil, fmt.Errorf("%w: buffer shorter than reserved header", ErrDecode)
	}
	n := binary.LittleEndian.Uint64(buf[numModelsOffset : numModelsOffset+8])
	if n > uint64(maxModels) {
		return nil, fmt.Errorf("%w: num_models %d exceeds header capacity", ErrDecode, n)
	}

	models := make([]*submodel.Submodel, 0, n)
	for i := uint64(0); i < n; i++ {
		ko := modelKeysOffset + i*8
		lastKey := binary.LittleEndian.Uint64(buf[ko : ko+8])

		oo := modelOffsetsOffset + i*8
		bodyOff := binary.LittleEndian.Uint64(buf[oo : oo+8])
		if bodyOff+4 > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: model %d offset out of range", ErrDecode, i)
		}
		bodyLen := binary.LittleEndian.Uint32(buf[bodyOff : bodyOff+4])
		start := bodyOff + 4
		end := start + uint64(bodyLen)
		if end > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: model %d body out of range", ErrDecode, i)
		}

		m, err := decodeSubmodel(lastKey, buf[start:end], p)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func decodeSubmodel(lastKey uint64, buf []byte, p Params) (*submodel.Submodel, error) {
	if len(buf) < 24+4+4 {
		return nil, fmt.Errorf("%w: submodel blob too short", ErrDecode)
	}
	off := 0
	slope := math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	intercept := math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	capacity := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	ltableLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if off+ltableLen > len(buf) {
		return nil, fmt.Errorf("%w: ltable blob truncated", ErrDecode)
	}
	ltableEnd := off + ltableLen

	entryCount := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if off+8*entryCount > len(buf) {
		return nil, fmt.Errorf("%w: ltable entries truncated", ErrDecode)
	}
	entries := make([]leaftable.Entry, entryCount)
	for i := 0; i < entryCount; i++ {
		entries[i] = leaftable.Entry(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}

	if off+4 > len(buf) {
		return nil, fmt.Errorf("%w: synonym count truncated", ErrDecode)
	}
	synCount := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if off+8*synCount > len(buf) {
		return nil, fmt.Errorf("%w: synonym entries truncated", ErrDecode)
	}
	synonym := make([]leaftable.Entry, synCount)
	for i := 0; i < synCount; i++ {
		synonym[i] = leaftable.Entry(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}

	if off != ltableEnd {
		return nil, fmt.Errorf("%w: ltable blob length mismatch", ErrDecode)
	}

	table := leaftable.LoadEntries(entries, synonym, p.SynMax)
	return submodel.New(lastKey, slope, intercept, capacity, p.Epsilon, p.LeafCap, table), nil
}
