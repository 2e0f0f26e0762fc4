package ext4

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	superblockOffset  = 1024
	superblockSize    = 1024
	superblockMagic   = 0xEF53
	creatorOSLinux    = 0
	revLevelDynamic   = 1
	stateCleanlyUnmnt = 0x0001
	stateErrors       = 0x0002
)

// Superblock is the validated, immutable geometry of one ext4 image. It is
// constructed once from a ByteSource and never mutated afterward; every
// other parsed value (inodes, extents, directory entries) is a plain value
// derived from it, never holding a back-reference of its own.
type Superblock struct {
	src ByteSource
	log logrus.FieldLogger
	opt Options

	blockSize       uint32
	inodesPerGroup  uint32
	inodeSize       uint16
	descSize        uint16
	totalBlocks     uint64
	blocksPerGroup  uint32
	firstDataBlock  uint32
	blockGroupCount uint32

	features featureFlags
	uuid     uuid.UUID

	// checksumsEnabled mirrors features.metadataChecksums, kept as its own
	// field since it also reflects the Options.Checksums policy outcome.
	checksumsEnabled bool
	// uuidChecksum is the CRC32C(~0, s_uuid) seed chained into every inode,
	// extent-block, and directory-trailer checksum on this filesystem. Only
	// meaningful when checksumsEnabled is true.
	uuidChecksum uint32

	groups []groupDescriptor
}

// Open reads, validates, and returns the superblock for src, per spec.md
// §4.2's numbered procedure. src is retained for the life of the returned
// Superblock; all further reads (inode tables, extent blocks, directory
// contents) go through it.
func Open(src ByteSource, opt Options) (*Superblock, error) {
	log := opt.logger()

	buf := make([]byte, superblockSize)
	if err := readExactAt(src, buf, superblockOffset); err != nil {
		return nil, wrapf(err, "reading superblock")
	}

	magic := binary.LittleEndian.Uint16(buf[0x38:0x3a])
	if magic != superblockMagic {
		return nil, notFound("invalid magic: %#04x", magic)
	}

	creatorOS := binary.LittleEndian.Uint32(buf[0x48:0x4c])
	if creatorOS != creatorOSLinux {
		return nil, unsupportedFeature("creator OS %d, only Linux (0) is supported", creatorOS)
	}

	compat := binary.LittleEndian.Uint32(buf[0x5c:0x60])
	incompat := binary.LittleEndian.Uint32(buf[0x60:0x64])
	roCompat := binary.LittleEndian.Uint32(buf[0x64:0x68])
	features := parseFeatureFlags(compat, incompat, roCompat)

	if features.incompat&^permittedIncompat != 0 {
		return nil, unsupportedFeature("incompatible feature bits %#x outside the permitted set", uint32(features.incompat)&^uint32(permittedIncompat))
	}

	descSize := uint16(0)
	if features.fs64Bit {
		descSize = binary.LittleEndian.Uint16(buf[0xfe:0x100])
		if descSize == 0 {
			descSize = 32
		}
	} else {
		descSize = binary.LittleEndian.Uint16(buf[0xfe:0x100])
		if descSize != 0 {
			return nil, assumptionFailed("s_desc_size %d must be zero without the 64bit feature", descSize)
		}
		descSize = 32
	}

	if features.metadataChecksums && features.gdtChecksums {
		return nil, assumptionFailed("metadata_csum and uninit_bg/gdt_csum are mutually exclusive")
	}
	checksumsEnabled := features.metadataChecksums
	if opt.Checksums == ChecksumsRequired && !checksumsEnabled {
		return nil, notFound("filesystem was not built with metadata checksums, and Options.Checksums requires them")
	}

	if checksumsEnabled {
		computed := crc32c(0xFFFFFFFF, buf[0:0x3fc])
		stored := binary.LittleEndian.Uint32(buf[0x3fc:0x400])
		if computed != stored {
			return nil, assumptionFailed("superblock checksum mismatch: on-disk %#x, computed %#x", stored, computed)
		}
	}

	state := binary.LittleEndian.Uint16(buf[0x3a:0x3c])
	if state&stateCleanlyUnmnt == 0 || state&stateErrors != 0 {
		return nil, assumptionFailed("filesystem state %#x is not cleanly-unmounted-without-errors", state)
	}

	inodesPerGroup := binary.LittleEndian.Uint32(buf[0x28:0x2c])
	revLevel := binary.LittleEndian.Uint32(buf[0x4c:0x50])
	if inodesPerGroup == 0 {
		return nil, assumptionFailed("s_inodes_per_group is zero")
	}
	if revLevel != revLevelDynamic {
		return nil, assumptionFailed("unsupported revision level %d", revLevel)
	}

	logBlockSize := binary.LittleEndian.Uint32(buf[0x18:0x1c])
	var blockSize uint32
	switch logBlockSize {
	case 0:
		blockSize = 1024
	case 1:
		blockSize = 2048
	case 2:
		blockSize = 4096
	case 6:
		blockSize = 65536
	default:
		return nil, assumptionFailed("unsupported s_log_block_size %d", logBlockSize)
	}

	blocksLo := binary.LittleEndian.Uint32(buf[0x4:0x8])
	blocksHi := uint32(0)
	if features.fs64Bit {
		blocksHi = binary.LittleEndian.Uint32(buf[0x150:0x154])
	}
	totalBlocks := uint64(blocksLo) | uint64(blocksHi)<<32

	blocksPerGroup := binary.LittleEndian.Uint32(buf[0x20:0x24])
	firstDataBlock := binary.LittleEndian.Uint32(buf[0x14:0x18])
	if blocksPerGroup == 0 {
		return nil, assumptionFailed("s_blocks_per_group is zero")
	}
	blockGroupCount := uint32((totalBlocks - uint64(firstDataBlock) + uint64(blocksPerGroup) - 1) / uint64(blocksPerGroup))

	volUUID, err := uuid.FromBytes(buf[0x68:0x78])
	if err != nil {
		return nil, assumptionFailed("invalid volume UUID: %v", err)
	}

	var uuidChecksum uint32
	if checksumsEnabled {
		uuidChecksum = crc32c(0xFFFFFFFF, buf[0x68:0x78])
	}

	inodeSize := binary.LittleEndian.Uint16(buf[0x58:0x5a])

	sb := &Superblock{
		src:              src,
		log:              log,
		opt:              opt,
		blockSize:        blockSize,
		inodesPerGroup:   inodesPerGroup,
		inodeSize:        inodeSize,
		descSize:         descSize,
		totalBlocks:      totalBlocks,
		blocksPerGroup:   blocksPerGroup,
		firstDataBlock:   firstDataBlock,
		blockGroupCount:  blockGroupCount,
		features:         features,
		uuid:             volUUID,
		checksumsEnabled: checksumsEnabled,
		uuidChecksum:     uuidChecksum,
	}

	log.WithField("block_size", blockSize).
		WithField("block_groups", blockGroupCount).
		WithField("inodes_per_group", inodesPerGroup).
		Debug("parsed ext4 superblock")

	gdtStart := int64(blockSize)
	if blockSize == 1024 {
		gdtStart = 2048
	}
	groups, err := parseGroupDescriptors(src, gdtStart, blockGroupCount, descSize, inodesPerGroup)
	if err != nil {
		return nil, wrapf(err, "parsing block group descriptor table")
	}
	sb.groups = groups

	return sb, nil
}

// readBlock reads one full filesystem block. Physical block 0 is never a
// valid target for the reader (spec.md §4.5); callers that derive a block
// number from extents or xattr pointers are expected to have already
// rejected zero before calling this.
func (sb *Superblock) readBlock(block uint64) ([]byte, error) {
	buf := make([]byte, sb.blockSize)
	if err := readExactAt(sb.src, buf, int64(block)*int64(sb.blockSize)); err != nil {
		return nil, wrapf(err, "reading block %d", block)
	}
	return buf, nil
}
