package ext4

import "encoding/binary"

const (
	bgFlagInodeUninit = 0x1
	bgFlagBlockUninit = 0x2
)

// groupDescriptor is the parsed view of one block-group descriptor table
// entry, per spec.md §4.3. Only the fields the core actually consumes are
// kept; a real descriptor carries several bitmap/checksum fields this
// read-only decoder has no use for (no allocation path exists here).
type groupDescriptor struct {
	inodeTableBlock uint64
	freeInodes      uint32
	// maxInodeNumber is 0 for a group the kernel never initialized; any
	// inode slot in such a group is unreachable (index_of rejects it).
	maxInodeNumber uint32
}

// parseGroupDescriptors reads blockGroupCount consecutive entries of
// descSize bytes each, starting at byte offset start.
func parseGroupDescriptors(src ByteSource, start int64, blockGroupCount uint32, descSize uint16, inodesPerGroup uint32) ([]groupDescriptor, error) {
	groups := make([]groupDescriptor, blockGroupCount)
	buf := make([]byte, int(descSize)*int(blockGroupCount))
	if err := readExactAt(src, buf, start); err != nil {
		return nil, wrapf(err, "reading group descriptor table")
	}

	for i := uint32(0); i < blockGroupCount; i++ {
		b := buf[int(i)*int(descSize) : (int(i)+1)*int(descSize)]

		inodeTableLo := binary.LittleEndian.Uint32(b[0x8:0xc])
		var inodeTableHi uint32
		freeInodesLo := binary.LittleEndian.Uint16(b[0xe:0x10])
		var freeInodesHi uint16
		flags := binary.LittleEndian.Uint16(b[0x12:0x14])

		if descSize >= 64 {
			inodeTableHi = binary.LittleEndian.Uint32(b[0x28:0x2c])
			freeInodesHi = binary.LittleEndian.Uint16(b[0x2e:0x30])
		}

		freeInodes := uint32(freeInodesLo) | uint32(freeInodesHi)<<16
		if freeInodes > inodesPerGroup {
			return nil, assumptionFailed("block group %d: free inodes %d exceeds inodes_per_group %d", i, freeInodes, inodesPerGroup)
		}

		maxInodeNumber := inodesPerGroup
		if flags&(bgFlagInodeUninit|bgFlagBlockUninit) != 0 {
			maxInodeNumber = 0
		}

		groups[i] = groupDescriptor{
			inodeTableBlock: uint64(inodeTableLo) | uint64(inodeTableHi)<<32,
			freeInodes:      freeInodes,
			maxInodeNumber:  maxInodeNumber,
		}
	}
	return groups, nil
}

// indexOf computes the absolute byte offset of inode's on-disk record, per
// spec.md §4.3's index_of procedure.
func (sb *Superblock) indexOf(inode uint32) (uint64, error) {
	if inode == 0 {
		return 0, notFound("inode 0 is not a valid inode number")
	}
	n := inode - 1
	group := n / sb.inodesPerGroup
	slot := n % sb.inodesPerGroup
	if int(group) >= len(sb.groups) {
		return 0, notFound("inode %d falls in block group %d, beyond the %d groups on this filesystem", inode, group, len(sb.groups))
	}
	g := sb.groups[group]
	if slot >= g.maxInodeNumber {
		return 0, assumptionFailed("inode %d: slot %d is beyond group %d's initialized inode range (%d)", inode, slot, group, g.maxInodeNumber)
	}
	return g.inodeTableBlock*uint64(sb.blockSize) + uint64(slot)*uint64(sb.inodeSize), nil
}
