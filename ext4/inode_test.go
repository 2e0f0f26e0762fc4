package ext4

import "testing"

func TestFromExtraLiteralVector(t *testing.T) {
	extra := uint32(0x1A83E957)
	ts := fromExtra(int32(0xC229D726), &extra)
	if ts.EpochSecs != 11_847_456_550 {
		t.Errorf("EpochSecs = %d, want 11847456550", ts.EpochSecs)
	}
	if ts.Nanos != 111_213_141 {
		t.Errorf("Nanos = %d, want 111213141", ts.Nanos)
	}
}

func TestFromExtraWithoutExtra(t *testing.T) {
	ts := fromExtra(1234, nil)
	if ts.HasNanos {
		t.Errorf("HasNanos = true, want false")
	}
	if ts.EpochSecs != 1234 {
		t.Errorf("EpochSecs = %d, want 1234", ts.EpochSecs)
	}
}

func TestFileTypeFromMode(t *testing.T) {
	tests := []struct {
		top4 uint16
		want FileType
	}{
		{0x8, RegularFile},
		{0x4, Directory},
		{0x2, CharacterDevice},
		{0x6, BlockDevice},
		{0x1, Fifo},
		{0xC, Socket},
		{0xA, SymbolicLink},
	}
	for _, tt := range tests {
		got, err := fileTypeFromMode(tt.top4)
		if err != nil {
			t.Fatalf("fileTypeFromMode(%#x) error = %v", tt.top4, err)
		}
		if got != tt.want {
			t.Errorf("fileTypeFromMode(%#x) = %v, want %v", tt.top4, got, tt.want)
		}
	}
}

func TestFileTypeFromModeRejectsUnknown(t *testing.T) {
	_, err := fileTypeFromMode(0x3)
	kind, ok := KindOf(err)
	if !ok || kind != UnsupportedFeature {
		t.Fatalf("fileTypeFromMode(0x3): err = %v, want UnsupportedFeature", err)
	}
}

func TestLoadInodeRoot(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	inode, err := sb.loadInode(2)
	if err != nil {
		t.Fatalf("loadInode(2) error = %v", err)
	}
	if inode.Stat.Type != Directory {
		t.Errorf("Type = %v, want Directory", inode.Stat.Type)
	}
	if inode.Stat.Size != 24 {
		t.Errorf("Size = %d, want 24", inode.Stat.Size)
	}
	if inode.Stat.LinkCount != 2 {
		t.Errorf("LinkCount = %d, want 2", inode.Stat.LinkCount)
	}
}

func TestLoadInodeRejectsUnknownFlagBits(t *testing.T) {
	data, bs, inodeTblBlock := buildMinimalImage()
	rootOffset := int(inodeTblBlock)*int(bs) + 128
	// a flag bit this package does not define
	data[rootOffset+0x20] = 0
	data[rootOffset+0x21] = 0
	data[rootOffset+0x22] = 0x80
	data[rootOffset+0x23] = 0
	sb, err := Open(&memSource{data: data}, Options{Checksums: ChecksumsEnabled})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = sb.loadInode(2)
	kind, ok := KindOf(err)
	if !ok || kind != UnsupportedFeature {
		t.Fatalf("loadInode(2) with unknown flag bit: err = %v, want UnsupportedFeature", err)
	}
}
