package ext4

import (
	"encoding/binary"
	"unicode/utf8"
)

const dirTrailerFileType = 0xDE

// DirEntry is one decoded directory record, per spec.md §4.6.
type DirEntry struct {
	Inode uint32
	Type  FileType
	Name  string
}

var dirFileTypeMap = map[byte]FileType{
	1: RegularFile,
	2: Directory,
	3: CharacterDevice,
	4: BlockDevice,
	5: Fifo,
	6: Socket,
	7: SymbolicLink,
}

// decodeDirectory streams directory records out of data (the full,
// in-memory content of a directory inode), per spec.md §4.6. checksumPrefix
// is consulted only when hasChecksumPrefix is true. crypto decrypts each
// entry's name only when encrypted is true (the directory inode carries the
// ENCRYPT flag), per spec.md §6.
func decodeDirectory(data []byte, checksumPrefix uint32, hasChecksumPrefix bool, crypto ContentCrypto, encrypted bool) ([]DirEntry, error) {
	var entries []DirEntry
	consumed := 0
	sawTrailer := false

	for consumed < len(data) {
		rest := data[consumed:]
		if len(rest) < 8 {
			return nil, assumptionFailed("directory record at offset %d: not enough bytes for a header", consumed)
		}
		childInode := binary.LittleEndian.Uint32(rest[0x0:0x4])
		recLen := binary.LittleEndian.Uint16(rest[0x4:0x6])
		nameLen := rest[0x6]
		fileType := rest[0x7]

		if recLen <= 8 {
			return nil, assumptionFailed("directory record at offset %d: rec_len %d must be greater than 8", consumed, recLen)
		}
		if int(recLen) > len(rest) {
			return nil, assumptionFailed("directory record at offset %d: rec_len %d overruns buffer of %d bytes", consumed, recLen, len(rest))
		}

		if recLen == 12 && nameLen == 0 && fileType == dirTrailerFileType {
			sawTrailer = true
			if hasChecksumPrefix {
				if len(rest) < 12 {
					return nil, assumptionFailed("directory trailer at offset %d: record too short for checksum", consumed)
				}
				stored := binary.LittleEndian.Uint32(rest[8:12])
				computed := crc32c(checksumPrefix, data[:consumed])
				if computed != stored {
					return nil, assumptionFailed("directory trailer: checksum mismatch, on-disk %#x computed %#x", stored, computed)
				}
			}
			consumed += int(recLen)
			break
		}

		if childInode != 0 {
			if int(recLen) < 8+int(nameLen) {
				return nil, assumptionFailed("directory record at offset %d: rec_len %d too short for name_len %d", consumed, recLen, nameLen)
			}
			nameBytes := rest[8 : 8+int(nameLen)]
			if encrypted {
				decrypted, err := crypto.DecryptFilename(nil, nameBytes)
				if err != nil {
					return nil, wrapf(err, "directory record at offset %d: decrypting name", consumed)
				}
				nameBytes = decrypted
			}
			if !utf8.Valid(nameBytes) {
				return nil, assumptionFailed("directory record at offset %d: name is not valid UTF-8", consumed)
			}
			ftype, ok := dirFileTypeMap[fileType]
			if !ok {
				return nil, unsupportedFeature("directory record at offset %d: unrecognized file_type %d", consumed, fileType)
			}
			entries = append(entries, DirEntry{
				Inode: childInode,
				Type:  ftype,
				Name:  string(nameBytes),
			})
		}

		consumed += int(recLen)
	}

	if consumed != len(data) {
		return nil, assumptionFailed("directory content: consumed %d bytes, expected exactly %d", consumed, len(data))
	}
	if hasChecksumPrefix && !sawTrailer {
		return nil, assumptionFailed("directory content: metadata checksums enabled but no trailer record found")
	}

	return entries, nil
}
