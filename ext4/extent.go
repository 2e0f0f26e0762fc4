package ext4

import (
	"encoding/binary"
	"sort"
)

const (
	extentHeaderSize   = 12
	extentRecordSize   = 12
	extentHeaderMagic  = 0xF30A
	extentTreeMaxDepth = 5
)

// Extent maps a contiguous run of logical file blocks onto a contiguous run
// of physical disk blocks, per spec.md §4.5.
type Extent struct {
	Part  uint32
	Start uint64
	Len   uint16
}

// extentChildRef is one depth>0 index record: the logical block it covers
// from, and the physical block of the child node.
type extentChildRef struct {
	part  uint32
	child uint64
}

// loadExtents walks the extent tree rooted in core (the inode's 60-byte
// region), yielding a flat list sorted by Part ascending. sb provides the
// block loader; checksumPrefix, when hasChecksumPrefix is true, verifies
// every referenced child block's trailing CRC32C.
func loadExtents(core []byte, sb *Superblock, checksumPrefix uint32, hasChecksumPrefix bool) ([]Extent, error) {
	var out []Extent
	if err := walkExtentNode(core, extentTreeMaxDepth+1, sb, checksumPrefix, hasChecksumPrefix, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Part < out[j].Part })
	return out, nil
}

// walkExtentNode parses one extent-tree node from b and recurses into its
// children if it is an index node. expectDepth, when >extentTreeMaxDepth,
// signals the root (whose depth is unconstrained except by the ≤5 ceiling);
// otherwise the node's own depth field must equal expectDepth exactly.
func walkExtentNode(b []byte, expectDepth int, sb *Superblock, checksumPrefix uint32, hasChecksumPrefix bool, out *[]Extent) error {
	if len(b) < extentHeaderSize+extentRecordSize {
		return assumptionFailed("extent node too short: %d bytes", len(b))
	}
	if binary.LittleEndian.Uint16(b[0x0:0x2]) != extentHeaderMagic {
		return assumptionFailed("extent node: bad magic %#x", binary.LittleEndian.Uint16(b[0x0:0x2]))
	}
	entries := binary.LittleEndian.Uint16(b[0x2:0x4])
	depth := binary.LittleEndian.Uint16(b[0x6:0x8])

	if need := extentHeaderSize + int(entries)*extentRecordSize; len(b) < need {
		return assumptionFailed("extent node: %d entries need %d bytes, have %d", entries, need, len(b))
	}

	if depth > extentTreeMaxDepth {
		return assumptionFailed("extent node: depth %d exceeds maximum of %d", depth, extentTreeMaxDepth)
	}
	if expectDepth <= extentTreeMaxDepth && int(depth) != expectDepth {
		return assumptionFailed("extent node: expected depth %d, found %d", expectDepth, depth)
	}

	if depth == 0 {
		for i := uint16(0); i < entries; i++ {
			rec := recordAt(b, i)
			eeBlock := binary.LittleEndian.Uint32(rec[0x0:0x4])
			eeLen := binary.LittleEndian.Uint16(rec[0x4:0x6])
			eeStartHi := binary.LittleEndian.Uint16(rec[0x6:0x8])
			eeStartLo := binary.LittleEndian.Uint32(rec[0x8:0xc])
			*out = append(*out, Extent{
				Part:  eeBlock,
				Start: uint64(eeStartLo) | uint64(eeStartHi)<<32,
				Len:   eeLen,
			})
		}
		return nil
	}

	for i := uint16(0); i < entries; i++ {
		rec := recordAt(b, i)
		eiLeafLo := binary.LittleEndian.Uint32(rec[0x4:0x8])
		eiLeafHi := binary.LittleEndian.Uint16(rec[0x8:0xa])
		childBlock := uint64(eiLeafLo) | uint64(eiLeafHi)<<32
		if childBlock == 0 {
			return assumptionFailed("extent index record resolves to physical block 0")
		}

		block, err := sb.readBlock(childBlock)
		if err != nil {
			return wrapf(err, "loading extent child block %d", childBlock)
		}
		if hasChecksumPrefix && len(block) >= 4 {
			stored := binary.LittleEndian.Uint32(block[len(block)-4:])
			computed := crc32c(checksumPrefix, block[:len(block)-4])
			if computed != stored {
				return assumptionFailed("extent child block %d: checksum mismatch, on-disk %#x computed %#x", childBlock, stored, computed)
			}
		}
		if err := walkExtentNode(block, int(depth)-1, sb, checksumPrefix, hasChecksumPrefix, out); err != nil {
			return err
		}
	}
	return nil
}

func recordAt(b []byte, i uint16) []byte {
	start := extentHeaderSize + int(i)*extentRecordSize
	return b[start : start+extentRecordSize]
}
