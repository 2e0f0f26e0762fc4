package ext4

import "hash/crc32"

// castagnoliTable is the lookup table for the CRC-32C (Castagnoli) variant
// ext4 metadata checksums use throughout: superblock, group descriptors,
// inodes, extent-tree blocks, external xattr blocks, and directory
// trailers. No third-party CRC library in the reference stack offers this
// byte-for-byte seeded variant (ext4's checksum chains a running seed
// through several CRC32c calls rather than computing one CRC per buffer),
// so it is built directly on the standard library's table, as the wider
// example pack itself does when it needs this exact polynomial.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// crc32c runs the raw, unreflected-at-the-edges CRC-32C accumulation ext4
// uses: the seed is fed directly into the register with no initial or final
// complement, so callers chain checksums by passing one call's result as the
// next call's seed (e.g. the UUID checksum becomes the seed for every inode
// checksum in the filesystem). This is deliberately not crc32.Checksum,
// whose IEEE-style API complements the register on entry and exit.
func crc32c(seed uint32, data []byte) uint32 {
	crc := seed
	for _, b := range data {
		crc = castagnoliTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}
