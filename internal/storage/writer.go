package storage

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Snapshot file header.
var MagicHeader = []byte("NANOFLW1")

// SnapshotWriter persists record batches as .nf files: header, one
// zstd-compressed row block, then a footer with the row count.
type SnapshotWriter struct {
	encoder *zstd.Encoder
}

func NewSnapshotWriter() (*SnapshotWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotWriter{encoder: enc}, nil
}

// WriteSnapshot writes the records to a .nf file.
func (sw *SnapshotWriter) WriteSnapshot(filename string, records []*record.Record) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// 1. Header
	if _, err := f.Write(MagicHeader); err != nil {
		return err
	}

	// 2. Serialize rows
	// Row format: [attrCount u32] then per attribute
	// [nameLen u32][name][kind u8][value].
	buf := new(bytes.Buffer)
	for _, rec := range records {
		binary.Write(buf, binary.LittleEndian, uint32(rec.Len()))
		for _, name := range rec.Names() {
			v, _ := rec.Get(name)
			writeString(buf, name)
			buf.WriteByte(byte(v.Kind()))
			switch v.Kind() {
			case record.KindBool:
				if v.Bool() {
					buf.WriteByte(1)
				} else {
					buf.WriteByte(0)
				}
			case record.KindInt:
				binary.Write(buf, binary.LittleEndian, v.Int())
			case record.KindString:
				writeString(buf, v.Str())
			}
		}
	}

	// 3. Compress and write the row block
	if err := sw.compressAndWrite(f, buf.Bytes()); err != nil {
		return err
	}

	// 4. Footer
	return binary.Write(f, binary.LittleEndian, uint32(len(records)))
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func (sw *SnapshotWriter) compressAndWrite(f *os.File, raw []byte) error {
	compressed := sw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	// [Compressed size u32][Data]
	size := uint32(len(compressed))
	if err := binary.Write(f, binary.LittleEndian, size); err != nil {
		return err
	}
	_, err := f.Write(compressed)
	return err
}
