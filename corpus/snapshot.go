package corpus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/grckit/simidx/blobstore"
)

// Snapshot binary format, little-endian:
//
//	uint32 magic, uint32 version, uint8 compression, uint32 featureCount
//	per feature:
//	  string name, uint32 dim, uint32 rowCount
//	  rowCount x (string id, string hash, uint8 distinguishing)
//	  uint32 uncompressedSize, uint32 compressedSize, payload
//	uint32 CRC32 (IEEE) of everything preceding
//
// compressedSize == 0 means the payload is stored raw (uncompressedSize
// bytes). Strings are uint32 length prefixed.
const (
	// snapshotMagic identifies corpus snapshot blobs (ASCII "SIM1").
	snapshotMagic = 0x53494D31
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 0x00010000
)

// Compression selects the block compression for snapshot vector payloads.
type Compression uint8

const (
	// CompressionNone stores vector blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, decent ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio, good for cold snapshots).
	CompressionZSTD Compression = 2
)

var (
	// ErrCorruptSnapshot is returned when a snapshot blob fails structural
	// or checksum validation.
	ErrCorruptSnapshot = errors.New("corpus: corrupt snapshot")
	errSnapshotMagic   = fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	errSnapshotVersion = fmt.Errorf("%w: unsupported version", ErrCorruptSnapshot)
)

// EncodeSnapshot serializes per-feature embedding data into a snapshot blob.
func EncodeSnapshot(features map[string]FeatureData, comp Compression) ([]byte, error) {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, snapshotMagic)
	buf = binary.LittleEndian.AppendUint32(buf, snapshotVersion)
	buf = append(buf, byte(comp))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(names)))

	for _, name := range names {
		fd := features[name]
		if fd.Dim <= 0 || len(fd.Vectors) < len(fd.IDs)*fd.Dim {
			return nil, fmt.Errorf("corpus: feature %q has inconsistent shape", name)
		}

		buf = appendString(buf, name)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(fd.Dim))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(fd.IDs)))

		for _, id := range fd.IDs {
			buf = appendString(buf, id)
			buf = appendString(buf, fd.Hashes[id])
			if fd.Distinguishing[id] {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}

		raw := make([]byte, len(fd.IDs)*fd.Dim*4)
		for i, v := range fd.Vectors[:len(fd.IDs)*fd.Dim] {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
		}

		block, err := compressBlock(raw, comp)
		if err != nil {
			return nil, err
		}
		buf = append(buf, block...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf, nil
}

// DecodeSnapshot parses a snapshot blob back into per-feature embedding data.
func DecodeSnapshot(data []byte) (map[string]FeatureData, error) {
	if len(data) < 17 {
		return nil, ErrCorruptSnapshot
	}

	body, tail := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	r := &snapshotReader{data: body}
	if r.uint32() != snapshotMagic {
		return nil, errSnapshotMagic
	}
	if r.uint32() != snapshotVersion {
		return nil, errSnapshotVersion
	}
	comp := Compression(r.byte())
	featureCount := int(r.uint32())

	out := make(map[string]FeatureData, featureCount)
	for f := 0; f < featureCount && r.err == nil; f++ {
		name := r.string()
		dim := int(r.uint32())
		rowCount := int(r.uint32())
		if r.err != nil || dim <= 0 || rowCount < 0 {
			return nil, ErrCorruptSnapshot
		}

		fd := FeatureData{
			Dim:            dim,
			IDs:            make([]string, rowCount),
			Hashes:         make(map[string]string, rowCount),
			Distinguishing: make(map[string]bool, rowCount),
		}
		for i := 0; i < rowCount; i++ {
			id := r.string()
			hash := r.string()
			dist := r.byte()
			if r.err != nil {
				return nil, ErrCorruptSnapshot
			}
			fd.IDs[i] = id
			if hash != "" {
				fd.Hashes[id] = hash
			}
			if dist != 0 {
				fd.Distinguishing[id] = true
			}
		}

		raw, err := decompressBlock(r, comp, rowCount*dim*4)
		if err != nil {
			return nil, err
		}
		fd.Vectors = make([]float32, rowCount*dim)
		for i := range fd.Vectors {
			fd.Vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		out[name] = fd
	}
	if r.err != nil {
		return nil, ErrCorruptSnapshot
	}
	return out, nil
}

// WriteSnapshot encodes the features and stores them as a blob.
func WriteSnapshot(ctx context.Context, bucket blobstore.Bucket, name string, features map[string]FeatureData, comp Compression) error {
	data, err := EncodeSnapshot(features, comp)
	if err != nil {
		return err
	}
	return bucket.Put(ctx, name, data)
}

// SnapshotSource adapts a stored snapshot blob to EmbeddingSource.
type SnapshotSource struct {
	bucket blobstore.Bucket
	name   string
}

// NewSnapshotSource creates an EmbeddingSource reading the named snapshot.
func NewSnapshotSource(bucket blobstore.Bucket, name string) *SnapshotSource {
	return &SnapshotSource{bucket: bucket, name: name}
}

// Load implements EmbeddingSource.
func (s *SnapshotSource) Load(ctx context.Context) (map[string]FeatureData, error) {
	data, err := s.bucket.Get(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("corpus: read snapshot %q: %w", s.name, err)
	}
	return DecodeSnapshot(data)
}

func compressBlock(raw []byte, comp Compression) ([]byte, error) {
	var payload []byte
	switch comp {
	case CompressionNone:
		// stored raw below
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 && n < len(raw) {
			payload = dst[:n]
		}
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		compressed := enc.EncodeAll(raw, nil)
		_ = enc.Close()
		if len(compressed) < len(raw) {
			payload = compressed
		}
	default:
		return nil, fmt.Errorf("corpus: unknown compression %d", comp)
	}

	var out []byte
	out = binary.LittleEndian.AppendUint32(out, uint32(len(raw)))
	if payload == nil {
		// Incompressible or compression disabled: store raw.
		out = binary.LittleEndian.AppendUint32(out, 0)
		return append(out, raw...), nil
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...), nil
}

func decompressBlock(r *snapshotReader, comp Compression, wantSize int) ([]byte, error) {
	uncompressedSize := int(r.uint32())
	compressedSize := int(r.uint32())
	if r.err != nil || uncompressedSize != wantSize {
		return nil, ErrCorruptSnapshot
	}

	if compressedSize == 0 {
		raw := r.bytes(uncompressedSize)
		if r.err != nil {
			return nil, ErrCorruptSnapshot
		}
		return raw, nil
	}

	payload := r.bytes(compressedSize)
	if r.err != nil {
		return nil, ErrCorruptSnapshot
	}

	switch comp {
	case CompressionLZ4:
		raw := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil || n != uncompressedSize {
			return nil, fmt.Errorf("%w: lz4 block", ErrCorruptSnapshot)
		}
		return raw, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		if err != nil || len(raw) != uncompressedSize {
			return nil, fmt.Errorf("%w: zstd block", ErrCorruptSnapshot)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: compressed block with compression %d", ErrCorruptSnapshot, comp)
	}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// snapshotReader is a bounds-checked cursor over a snapshot body.
// The first failed read latches err; subsequent reads return zero values.
type snapshotReader struct {
	data []byte
	off  int
	err  error
}

func (r *snapshotReader) fail() {
	if r.err == nil {
		r.err = ErrCorruptSnapshot
	}
}

func (r *snapshotReader) byte() byte {
	if r.err != nil || r.off+1 > len(r.data) {
		r.fail()
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *snapshotReader) uint32() uint32 {
	if r.err != nil || r.off+4 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *snapshotReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.data) {
		r.fail()
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *snapshotReader) string() string {
	n := int(r.uint32())
	return string(r.bytes(n))
}
