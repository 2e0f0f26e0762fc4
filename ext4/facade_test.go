package ext4

import (
	"encoding/binary"
	"testing"

	"github.com/go-test/deep"
)

// buildImageWithTwoFiles extends buildMinimalImage's root directory with two
// extra regular-file entries ("a" at inode 3, "b" at inode 4), so tests can
// observe traversal across more than one sibling.
func buildImageWithTwoFiles() (*Superblock, error) {
	const (
		bs            = 1024
		inodeSize     = 128
		inodeTblBlock = 5
		rootDirBlock  = 6
	)
	data, _, _ := buildMinimalImage()

	for i := 0; i < 2; i++ {
		inodeNum := uint32(3 + i)
		slot := inodeNum - 1
		off := inodeTblBlock*bs + int(slot)*inodeSize
		fi := data[off : off+inodeSize]
		binary.LittleEndian.PutUint16(fi[0x0:0x2], 0x8000|0644) // regular file
		binary.LittleEndian.PutUint16(fi[0x1a:0x1c], 1)         // links_count
	}

	dirContent := data[rootDirBlock*bs : rootDirBlock*bs+48]
	binary.LittleEndian.PutUint32(dirContent[24:28], 3) // inode
	binary.LittleEndian.PutUint16(dirContent[28:30], 12)
	dirContent[30] = 1 // name_len
	dirContent[31] = 1 // file_type: RegularFile
	dirContent[32] = 'a'

	binary.LittleEndian.PutUint32(dirContent[36:40], 4) // inode
	binary.LittleEndian.PutUint16(dirContent[40:42], 12)
	dirContent[42] = 1
	dirContent[43] = 1
	dirContent[44] = 'b'

	rootOffset := inodeTblBlock*bs + 1*inodeSize
	root := data[rootOffset : rootOffset+inodeSize]
	binary.LittleEndian.PutUint32(root[0x4:0x8], 48) // size_lo grows to 48 bytes

	return Open(&memSource{data: data}, Options{Checksums: ChecksumsEnabled})
}

func TestLoadInodeIsIdempotent(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	first, err := sb.LoadInode(2)
	if err != nil {
		t.Fatalf("LoadInode(2) error = %v", err)
	}
	second, err := sb.LoadInode(2)
	if err != nil {
		t.Fatalf("LoadInode(2) error = %v", err)
	}
	deep.CompareUnexportedFields = true
	if diff := deep.Equal(first.Stat, second.Stat); diff != nil {
		t.Errorf("two LoadInode(2) calls produced different Stat: %v", diff)
	}
}

func TestSuperblockUUIDRoundTrips(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	want := make([]byte, 16)
	for i := range want {
		want[i] = byte(0xA0 + i)
	}
	got := sb.UUID()
	if got.String() == "" {
		t.Fatalf("UUID() returned zero value")
	}
	for i, b := range got {
		if b != want[i] {
			t.Fatalf("UUID() byte %d = %#x, want %#x", i, b, want[i])
		}
	}
}

func TestDecodeDeviceNumbersOldFormat(t *testing.T) {
	core := make([]byte, 60)
	core[0] = 8 // minor
	core[1] = 3 // major
	major, minor := decodeDeviceNumbers(core)
	if major != 3 || minor != 8 {
		t.Errorf("decodeDeviceNumbers() = (%d, %d), want (3, 8)", major, minor)
	}
}

func TestDecodeDeviceNumbersNewFormat(t *testing.T) {
	core := make([]byte, 60)
	core[4] = 0x05
	core[5] = 0x01
	core[6] = 0x00
	core[7] = 0x00
	major, minor := decodeDeviceNumbers(core)
	if major != 1 {
		t.Errorf("major = %d, want 1", major)
	}
	if minor != 5 {
		t.Errorf("minor = %d, want 5", minor)
	}
}

func TestRootAndWalk(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	root, err := sb.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	enhanced, err := sb.Enhance(root)
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	dir, ok := enhanced.(EnhancedDirectory)
	if !ok {
		t.Fatalf("Enhance() = %T, want EnhancedDirectory", enhanced)
	}
	if len(dir.Entries) != 2 {
		t.Fatalf("len(dir.Entries) = %d, want 2", len(dir.Entries))
	}

	visited := map[string]bool{}
	err = sb.Walk(root, "/", func(_ *Superblock, path string, _ *Inode, _ Enhanced) bool {
		visited[path] = true
		return true
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if !visited["/"] {
		t.Errorf("Walk() never visited root, visited = %v", visited)
	}
}

func TestWalkShortCircuitsOnFalse(t *testing.T) {
	sb, err := buildImageWithTwoFiles()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	root, err := sb.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}

	var visited []string
	err = sb.Walk(root, "/", func(_ *Superblock, path string, _ *Inode, _ Enhanced) bool {
		visited = append(visited, path)
		return path != "/a"
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	for _, p := range visited {
		if p == "/b" {
			t.Fatalf("Walk() visited %q after visitor returned false for /a: visited = %v", p, visited)
		}
	}
}

func TestResolvePathRoot(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	root, err := sb.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	resolved, err := sb.ResolvePath("/")
	if err != nil {
		t.Fatalf("ResolvePath(\"/\") error = %v", err)
	}
	if resolved.Number != root.Number {
		t.Errorf("ResolvePath(\"/\") inode = %d, want %d", resolved.Number, root.Number)
	}
}

func TestResolvePathMissingComponent(t *testing.T) {
	sb, err := buildMinimalSuperblock()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = sb.ResolvePath("/does-not-exist")
	kind, ok := KindOf(err)
	if !ok || kind != NotFound {
		t.Fatalf("ResolvePath(missing): err = %v, want NotFound", err)
	}
}
