package ext4

import (
	"encoding/binary"
	"testing"
)

func dirRecord(inode uint32, recLen uint16, fileType byte, name string) []byte {
	b := make([]byte, recLen)
	binary.LittleEndian.PutUint32(b[0:4], inode)
	binary.LittleEndian.PutUint16(b[4:6], recLen)
	b[6] = byte(len(name))
	b[7] = fileType
	copy(b[8:], name)
	return b
}

func TestDecodeDirectoryBasic(t *testing.T) {
	data := append(dirRecord(2, 12, 2, "."), dirRecord(2, 12, 2, "..")...)
	entries, err := decodeDirectory(data, 0, false, NoneCrypto{}, false)
	if err != nil {
		t.Fatalf("decodeDirectory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name != "." || entries[1].Name != ".." {
		t.Errorf("entries = %+v", entries)
	}
	if entries[0].Type != Directory {
		t.Errorf("entries[0].Type = %v, want Directory", entries[0].Type)
	}
}

func TestDecodeDirectoryRejectsShortRecLen(t *testing.T) {
	data := dirRecord(2, 8, 2, "")
	_, err := decodeDirectory(data, 0, false, NoneCrypto{}, false)
	kind, ok := KindOf(err)
	if !ok || kind != AssumptionFailed {
		t.Fatalf("decodeDirectory() with rec_len=8: err = %v, want AssumptionFailed", err)
	}
}

func TestDecodeDirectoryRejectsInvalidUTF8(t *testing.T) {
	rec := dirRecord(2, 12, 2, "")
	rec[6] = 2
	rec[8] = 0xff
	rec[9] = 0xfe
	_, err := decodeDirectory(rec, 0, false, NoneCrypto{}, false)
	kind, ok := KindOf(err)
	if !ok || kind != AssumptionFailed {
		t.Fatalf("decodeDirectory() with invalid UTF-8 name: err = %v, want AssumptionFailed", err)
	}
}

func TestDecodeDirectoryRejectsNameLenOverrunningRecLen(t *testing.T) {
	// rec_len=12 only leaves 4 bytes for the name (8..12), but name_len
	// claims 200 bytes — must fail cleanly instead of slicing out of bounds.
	rec := dirRecord(2, 12, 2, "")
	rec[6] = 200
	_, err := decodeDirectory(rec, 0, false, NoneCrypto{}, false)
	kind, ok := KindOf(err)
	if !ok || kind != AssumptionFailed {
		t.Fatalf("decodeDirectory() with name_len overrunning rec_len: err = %v, want AssumptionFailed", err)
	}
}

func TestDecodeDirectoryTrailerWithChecksum(t *testing.T) {
	entry := dirRecord(2, 12, 2, ".")
	trailer := make([]byte, 12)
	binary.LittleEndian.PutUint16(trailer[4:6], 12)
	trailer[7] = dirTrailerFileType

	checksum := crc32c(0xABCD, entry)
	binary.LittleEndian.PutUint32(trailer[8:12], checksum)
	full := append([]byte{}, entry...)
	full = append(full, trailer...)

	entries, err := decodeDirectory(full, 0xABCD, true, NoneCrypto{}, false)
	if err != nil {
		t.Fatalf("decodeDirectory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestDecodeDirectoryTrailerChecksumMismatch(t *testing.T) {
	entry := dirRecord(2, 12, 2, ".")
	trailer := make([]byte, 12)
	binary.LittleEndian.PutUint16(trailer[4:6], 12)
	trailer[7] = dirTrailerFileType
	binary.LittleEndian.PutUint32(trailer[8:12], 0xDEADBEEF)
	full := append([]byte{}, entry...)
	full = append(full, trailer...)

	_, err := decodeDirectory(full, 0xABCD, true, NoneCrypto{}, false)
	kind, ok := KindOf(err)
	if !ok || kind != AssumptionFailed {
		t.Fatalf("decodeDirectory() with bad trailer checksum: err = %v, want AssumptionFailed", err)
	}
}
