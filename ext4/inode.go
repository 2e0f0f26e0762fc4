package ext4

import (
	"encoding/binary"
)

// FileType is the type tag stored in the top 4 bits of an inode's mode.
type FileType int

const (
	RegularFile FileType = iota
	Directory
	CharacterDevice
	BlockDevice
	Fifo
	Socket
	SymbolicLink
)

func fileTypeFromMode(top4 uint16) (FileType, error) {
	switch top4 {
	case 0x8:
		return RegularFile, nil
	case 0x4:
		return Directory, nil
	case 0x2:
		return CharacterDevice, nil
	case 0x6:
		return BlockDevice, nil
	case 0x1:
		return Fifo, nil
	case 0xC:
		return Socket, nil
	case 0xA:
		return SymbolicLink, nil
	default:
		return 0, unsupportedFeature("unrecognized inode mode file-type bits %#x", top4)
	}
}

// Timestamp is one of an inode's four time fields, widened from the 32-bit
// on-disk seconds field when the inode carries "extra" room for it.
type Timestamp struct {
	EpochSecs int64
	Nanos     uint32
	HasNanos  bool
}

// fromExtra implements spec.md §4.4's time-widening formula: the low 2 bits
// of extra extend epochSecs into bits 32/33, and the remaining 30 bits,
// shifted down by 2, are nanoseconds clamped to a valid range.
func fromExtra(epochSecs int32, extra *uint32) Timestamp {
	if extra == nil {
		return Timestamp{EpochSecs: int64(epochSecs)}
	}
	secs := int64(epochSecs) + (int64(*extra&0x3) << 32)
	nanos := *extra >> 2
	if nanos > 999_999_999 {
		nanos = 999_999_999
	}
	return Timestamp{EpochSecs: secs, Nanos: nanos, HasNanos: true}
}

// inodeFlag is the bitset stored in an inode's i_flags field. Every bit this
// package accepts is named below, though only a few (extents, encryption,
// the directory subset) carry behavior here; an inode with any bit not
// listed is rejected as UnsupportedFeature.
type inodeFlag uint32

const (
	inodeFlagSecureDeletion        inodeFlag = 0x1
	inodeFlagPreserveForUndeletion inodeFlag = 0x2
	inodeFlagCompressed            inodeFlag = 0x4
	inodeFlagSynchronous           inodeFlag = 0x8
	inodeFlagImmutable             inodeFlag = 0x10
	inodeFlagAppendOnly            inodeFlag = 0x20
	inodeFlagNoDump                inodeFlag = 0x40
	inodeFlagNoAccessTimeUpdate    inodeFlag = 0x80
	inodeFlagDirtyCompressed       inodeFlag = 0x100
	inodeFlagCompressedClusters    inodeFlag = 0x200
	inodeFlagNoCompress            inodeFlag = 0x400
	inodeFlagEncrypted             inodeFlag = 0x800
	inodeFlagHashedDirIndexes      inodeFlag = 0x1000
	inodeFlagAFSMagicDirectory     inodeFlag = 0x2000
	inodeFlagAlwaysJournal         inodeFlag = 0x4000
	inodeFlagNoMergeTail           inodeFlag = 0x8000
	inodeFlagSyncDirectoryData     inodeFlag = 0x10000
	inodeFlagTopDirectory          inodeFlag = 0x20000
	inodeFlagHugeFile              inodeFlag = 0x40000
	inodeFlagExtents               inodeFlag = 0x80000
	inodeFlagEAInode               inodeFlag = 0x200000
	inodeFlagEOFBlocks             inodeFlag = 0x400000
	inodeFlagSnapshot              inodeFlag = 0x1000000
	inodeFlagDeletingSnapshot      inodeFlag = 0x4000000
	inodeFlagCompletedSnapshotShrk inodeFlag = 0x8000000
	inodeFlagInlineData            inodeFlag = 0x10000000
	inodeFlagInheritProject        inodeFlag = 0x20000000
)

// directoryPermittedFlags is the relevant subset spec.md §4.6 names for
// validating a directory inode's flags.
const directoryPermittedFlags = inodeFlagCompressed | inodeFlagDirtyCompressed | inodeFlagCompressedClusters |
	inodeFlagEncrypted | inodeFlagAFSMagicDirectory | inodeFlagNoMergeTail | inodeFlagTopDirectory |
	inodeFlagHugeFile | inodeFlagExtents | inodeFlagEAInode | inodeFlagEOFBlocks | inodeFlagInlineData

// allKnownInodeFlags is every bit this package recognizes; any other bit set
// on an inode is UnsupportedFeature per spec.md §4.4.
const allKnownInodeFlags = inodeFlagSecureDeletion | inodeFlagPreserveForUndeletion | inodeFlagCompressed |
	inodeFlagSynchronous | inodeFlagImmutable | inodeFlagAppendOnly | inodeFlagNoDump | inodeFlagNoAccessTimeUpdate |
	inodeFlagDirtyCompressed | inodeFlagCompressedClusters | inodeFlagNoCompress | inodeFlagEncrypted |
	inodeFlagHashedDirIndexes | inodeFlagAFSMagicDirectory | inodeFlagAlwaysJournal | inodeFlagNoMergeTail |
	inodeFlagSyncDirectoryData | inodeFlagTopDirectory | inodeFlagHugeFile | inodeFlagExtents |
	inodeFlagEAInode | inodeFlagEOFBlocks | inodeFlagSnapshot | inodeFlagDeletingSnapshot |
	inodeFlagCompletedSnapshotShrk | inodeFlagInlineData | inodeFlagInheritProject

// Stat is the caller-facing metadata view of a parsed inode.
type Stat struct {
	Type      FileType
	Mode      uint16
	UID       uint32
	GID       uint32
	Size      uint64
	ATime     Timestamp
	CTime     Timestamp
	MTime     Timestamp
	BTime     Timestamp
	LinkCount uint16
	Xattrs    map[string][]byte
}

// Inode is a fully parsed, self-contained inode record. It holds no
// back-reference to the byte source; reading its content requires passing
// the owning Superblock to Open/Enhance.
type Inode struct {
	Number uint32
	Stat   Stat

	flags inodeFlag
	core  [60]byte

	// checksumPrefix is the per-inode CRC32C seed retained for extent-tree
	// and directory-trailer checksum verification, set only when the
	// filesystem has metadata checksums enabled.
	checksumPrefix    uint32
	hasChecksumPrefix bool
}

// loadInode reads and parses the on-disk inode numbered n.
func (sb *Superblock) loadInode(n uint32) (*Inode, error) {
	offset, err := sb.indexOf(n)
	if err != nil {
		return nil, wrapf(err, "inode %d", n)
	}
	buf := make([]byte, sb.inodeSize)
	if err := readExactAt(sb.src, buf, int64(offset)); err != nil {
		return nil, wrapf(err, "inode %d: reading inode record", n)
	}
	inode, err := parseInode(buf, n, sb)
	if err != nil {
		return nil, wrapf(err, "inode %d", n)
	}
	return inode, nil
}

func parseInode(b []byte, number uint32, sb *Superblock) (*Inode, error) {
	if len(b) < 128 {
		return nil, assumptionFailed("inode buffer too short: %d bytes, need at least 128", len(b))
	}

	mode := binary.LittleEndian.Uint16(b[0x0:0x2])
	fileType, err := fileTypeFromMode(mode >> 12)
	if err != nil {
		return nil, err
	}

	uidLo := binary.LittleEndian.Uint16(b[0x2:0x4])
	sizeLo := binary.LittleEndian.Uint32(b[0x4:0x8])
	atime := int32(binary.LittleEndian.Uint32(b[0x8:0xc]))
	ctime := int32(binary.LittleEndian.Uint32(b[0xc:0x10]))
	mtime := int32(binary.LittleEndian.Uint32(b[0x10:0x14]))
	gidLo := binary.LittleEndian.Uint16(b[0x18:0x1a])
	linksCount := binary.LittleEndian.Uint16(b[0x1a:0x1c])
	flagsNum := binary.LittleEndian.Uint32(b[0x20:0x24])
	generation := binary.LittleEndian.Uint32(b[0x64:0x68])
	fileACLLo := binary.LittleEndian.Uint32(b[0x68:0x6c])
	sizeHi := binary.LittleEndian.Uint32(b[0x6c:0x70])
	fileACLHi := binary.LittleEndian.Uint16(b[0x76:0x78])
	uidHi := binary.LittleEndian.Uint16(b[0x78:0x7a])
	gidHi := binary.LittleEndian.Uint16(b[0x7a:0x7c])
	checksumLo := binary.LittleEndian.Uint16(b[0x7c:0x7e])

	var core [60]byte
	copy(core[:], b[0x28:0x64])

	if flagsNum&^uint32(allKnownInodeFlags) != 0 {
		return nil, unsupportedFeature("inode %d: unrecognized flag bits %#x", number, flagsNum&^uint32(allKnownInodeFlags))
	}
	flags := inodeFlag(flagsNum)

	size := uint64(sizeLo) | uint64(sizeHi)<<32
	fileACL := uint64(fileACLLo) | uint64(fileACLHi)<<32

	var checksumHi *uint16
	var atimeExtra, ctimeExtra, mtimeExtra, crtimeExtra *uint32
	var crtime int32
	extraIsize := uint16(0)

	if len(b) >= 130 {
		extraIsize = binary.LittleEndian.Uint16(b[0x80:0x82])
		if 128+int(extraIsize) > len(b) {
			return nil, assumptionFailed("inode %d: extra_isize %d overruns buffer of %d bytes", number, extraIsize, len(b))
		}
		extra := b[128 : 128+int(extraIsize)]

		field := func(off, size int) []byte {
			if off+size > len(extra) {
				return nil
			}
			return extra[off : off+size]
		}
		if f := field(2, 2); f != nil {
			v := binary.LittleEndian.Uint16(f)
			checksumHi = &v
		}
		if f := field(6, 4); f != nil {
			v := binary.LittleEndian.Uint32(f)
			ctimeExtra = &v
		}
		if f := field(10, 4); f != nil {
			v := binary.LittleEndian.Uint32(f)
			mtimeExtra = &v
		}
		if f := field(14, 4); f != nil {
			v := binary.LittleEndian.Uint32(f)
			atimeExtra = &v
		}
		if f := field(18, 4); f != nil {
			crtime = int32(binary.LittleEndian.Uint32(f))
		}
		if f := field(22, 4); f != nil {
			v := binary.LittleEndian.Uint32(f)
			crtimeExtra = &v
		}
	}

	inode := &Inode{
		Number: number,
		flags:  flags,
		core:   core,
		Stat: Stat{
			Type:      fileType,
			Mode:      mode & 0x0FFF,
			UID:       uint32(uidHi)<<16 | uint32(uidLo),
			GID:       uint32(gidHi)<<16 | uint32(gidLo),
			Size:      size,
			ATime:     fromExtra(atime, atimeExtra),
			CTime:     fromExtra(ctime, ctimeExtra),
			MTime:     fromExtra(mtime, mtimeExtra),
			BTime:     fromExtra(crtime, crtimeExtra),
			LinkCount: linksCount,
		},
	}

	if sb.checksumsEnabled {
		numBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(numBytes, number)
		genBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(genBytes, generation)
		seed := crc32c(sb.uuidChecksum, numBytes)
		seed = crc32c(seed, genBytes)

		zeroed := make([]byte, len(b))
		copy(zeroed, b)
		zeroed[0x7c] = 0
		zeroed[0x7d] = 0
		if checksumHi != nil {
			zeroed[128+2] = 0
			zeroed[128+3] = 0
		}
		computed := crc32c(seed, zeroed)

		var expected, got uint32
		if checksumHi != nil {
			expected = uint32(checksumLo) | uint32(*checksumHi)<<16
			got = computed
		} else {
			expected = uint32(checksumLo)
			got = computed & 0xFFFF
		}
		if expected != got {
			return nil, assumptionFailed("inode %d: checksum mismatch, on-disk %#x computed %#x", number, expected, got)
		}
		inode.checksumPrefix = seed
		inode.hasChecksumPrefix = true
	}

	xattrs := map[string][]byte{}
	if extraIsize > 0 {
		xattrStart := 128 + int(extraIsize)
		if xattrStart+4 <= len(b) && binary.LittleEndian.Uint32(b[xattrStart:xattrStart+4]) == xattrMagic {
			region := b[xattrStart+4:]
			if err := parseXattrEntries(region, region, xattrs); err != nil {
				return nil, wrapf(err, "inode %d: inline xattrs", number)
			}
		}
	}
	if fileACL != 0 {
		blk, err := sb.readBlock(fileACL)
		if err != nil {
			return nil, wrapf(err, "inode %d: loading external xattr block %d", number, fileACL)
		}
		if err := parseExternalXattrBlock(blk, sb, fileACL, xattrs); err != nil {
			return nil, wrapf(err, "inode %d: external xattr block %d", number, fileACL)
		}
	}
	inode.Stat.Xattrs = xattrs

	return inode, nil
}
