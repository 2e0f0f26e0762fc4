package ext4

// Feature-flag bit values, per the standard ext4 on-disk layout. Grounded on
// the same constant table hellin-go-ext4's superblock.go and the
// trustelem-go-diskfs superblock fork both carry; only the subset spec.md
// §4.2 actually inspects is named here.
const (
	incompatFiletype incompatFeature = 0x2
	incompatRecover  incompatFeature = 0x4
	incompatExtents  incompatFeature = 0x40
	incompat64Bit    incompatFeature = 0x80
	incompatFlexBG   incompatFeature = 0x200

	roCompatGDTChecksum      roCompatFeature = 0x10
	roCompatMetadataChecksum roCompatFeature = 0x400
)

// permittedIncompat is the exhaustive set of incompatible-feature bits
// spec.md §4.2 step 4 allows; any other bit set is UnsupportedFeature,
// including bits this package simply doesn't recognize.
const permittedIncompat = incompatFiletype | incompatRecover | incompatExtents | incompat64Bit | incompatFlexBG

type compatFeature uint32
type incompatFeature uint32
type roCompatFeature uint32

// featureFlags is the decoded, validated view of the three feature words.
type featureFlags struct {
	compat   compatFeature
	incompat incompatFeature
	roCompat roCompatFeature

	fs64Bit           bool
	metadataChecksums bool
	gdtChecksums      bool
}

func parseFeatureFlags(compat, incompat, roCompat uint32) featureFlags {
	f := featureFlags{
		compat:   compatFeature(compat),
		incompat: incompatFeature(incompat),
		roCompat: roCompatFeature(roCompat),
	}
	f.fs64Bit = f.incompat&incompat64Bit != 0
	f.metadataChecksums = f.roCompat&roCompatMetadataChecksum != 0
	f.gdtChecksums = f.roCompat&roCompatGDTChecksum != 0
	return f
}
