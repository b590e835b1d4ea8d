package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/nanoflow/internal/record"
)

var ErrInvalidHeader = errors.New("invalid .nf file header")

// SnapshotReader reads .nf record snapshots written by SnapshotWriter.
type SnapshotReader struct {
	decoder *zstd.Decoder
}

func NewSnapshotReader() (*SnapshotReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotReader{decoder: dec}, nil
}

// ReadSnapshot reads all records from a .nf file.
func (sr *SnapshotReader) ReadSnapshot(filename string) ([]*record.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// 1. Validate header
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header, MagicHeader) {
		return nil, ErrInvalidHeader
	}

	// 2. Decompress the row block
	raw, err := sr.readAndDecompress(f)
	if err != nil {
		return nil, err
	}

	// 3. Footer: row count
	var rowCount uint32
	if err := binary.Read(f, binary.LittleEndian, &rowCount); err != nil {
		return nil, fmt.Errorf("snapshot footer: %w", err)
	}

	// 4. Decode rows
	buf := bytes.NewReader(raw)
	records := make([]*record.Record, 0, rowCount)
	for i := uint32(0); i < rowCount; i++ {
		rec, err := readRow(buf)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readRow(buf *bytes.Reader) (*record.Record, error) {
	var attrCount uint32
	if err := binary.Read(buf, binary.LittleEndian, &attrCount); err != nil {
		return nil, err
	}
	rec := record.New()
	for i := uint32(0); i < attrCount; i++ {
		name, err := readString(buf)
		if err != nil {
			return nil, err
		}
		kindByte, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		switch record.Kind(kindByte) {
		case record.KindBool:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, err
			}
			rec.Set(name, record.Bool(b != 0))
		case record.KindInt:
			var n int64
			if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
				return nil, err
			}
			rec.Set(name, record.Int(n))
		case record.KindString:
			s, err := readString(buf)
			if err != nil {
				return nil, err
			}
			rec.Set(name, record.String(s))
		default:
			return nil, fmt.Errorf("unknown value kind %d", kindByte)
		}
	}
	return rec, nil
}

func readString(buf *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(buf, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (sr *SnapshotReader) readAndDecompress(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	return sr.decoder.DecodeAll(compressed, nil)
}
