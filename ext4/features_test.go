package ext4

import "testing"

func TestParseFeatureFlags(t *testing.T) {
	f := parseFeatureFlags(0, uint32(incompatFiletype|incompat64Bit), uint32(roCompatMetadataChecksum))
	if !f.fs64Bit {
		t.Errorf("fs64Bit = false, want true")
	}
	if !f.metadataChecksums {
		t.Errorf("metadataChecksums = false, want true")
	}
	if f.gdtChecksums {
		t.Errorf("gdtChecksums = true, want false")
	}
	if f.incompat&^permittedIncompat != 0 {
		t.Errorf("incompat %#x has bits outside permittedIncompat %#x", f.incompat, permittedIncompat)
	}
}
