package ext4

import (
	"strings"

	"github.com/google/uuid"
)

const rootInodeNumber = 2

// UUID returns the filesystem's volume UUID, as decoded from s_uuid during
// Open.
func (sb *Superblock) UUID() uuid.UUID {
	return sb.uuid
}

// BlockSize returns the filesystem's native block size in bytes, one of
// {1024, 2048, 4096, 65536}.
func (sb *Superblock) BlockSize() uint32 {
	return sb.blockSize
}

// Root loads the filesystem's root directory inode.
func (sb *Superblock) Root() (*Inode, error) {
	return sb.LoadInode(rootInodeNumber)
}

// LoadInode reads and parses the inode numbered n.
func (sb *Superblock) LoadInode(n uint32) (*Inode, error) {
	return sb.loadInode(n)
}

// Open constructs a seekable reader over inode's extent-mapped content.
// inode must carry the EXTENTS flag; inline data and indirect-block
// layouts are not supported.
func (sb *Superblock) Open(inode *Inode) (*FileReader, error) {
	if inode.flags&inodeFlagExtents == 0 {
		return nil, unsupportedFeature("inode %d: only extent-mapped files are supported", inode.Number)
	}
	extents, err := loadExtents(inode.core[:], sb, inode.checksumPrefix, inode.hasChecksumPrefix)
	if err != nil {
		return nil, wrapf(err, "inode %d: walking extent tree", inode.Number)
	}
	encrypted := inode.flags&inodeFlagEncrypted != 0
	return newFileReader(sb, extents, inode.Stat.Size, sb.opt.crypto(), encrypted), nil
}

// Enhanced is the type-specific interpretation of an inode's content,
// produced by Enhance. Exactly one of the Enhanced* types below is
// returned for any inode.
type Enhanced interface {
	isEnhanced()
}

type EnhancedRegular struct{}
type EnhancedFifo struct{}
type EnhancedSocket struct{}

type EnhancedDirectory struct {
	Entries []DirEntry
}

type EnhancedSymlink struct {
	Target string
}

type EnhancedDevice struct {
	Major uint32
	Minor uint32
}

func (EnhancedRegular) isEnhanced()    {}
func (EnhancedFifo) isEnhanced()       {}
func (EnhancedSocket) isEnhanced()     {}
func (EnhancedDirectory) isEnhanced()  {}
func (EnhancedSymlink) isEnhanced()    {}
func (EnhancedDevice) isEnhanced()     {}

// Enhance interprets inode's content according to its file type, per
// spec.md §4.7.
func (sb *Superblock) Enhance(inode *Inode) (Enhanced, error) {
	switch inode.Stat.Type {
	case RegularFile:
		return EnhancedRegular{}, nil
	case Fifo:
		return EnhancedFifo{}, nil
	case Socket:
		return EnhancedSocket{}, nil
	case Directory:
		if inode.flags&^directoryPermittedFlags != 0 {
			return nil, unsupportedFeature("inode %d: directory has unsupported flags %#x", inode.Number, uint32(inode.flags&^directoryPermittedFlags))
		}
		r, err := sb.Open(inode)
		if err != nil {
			return nil, wrapf(err, "inode %d: opening directory content", inode.Number)
		}
		data, err := r.ReadAll()
		if err != nil {
			return nil, wrapf(err, "inode %d: reading directory content", inode.Number)
		}
		encrypted := inode.flags&inodeFlagEncrypted != 0
		entries, err := decodeDirectory(data, inode.checksumPrefix, inode.hasChecksumPrefix, sb.opt.crypto(), encrypted)
		if err != nil {
			return nil, wrapf(err, "inode %d: decoding directory entries", inode.Number)
		}
		return EnhancedDirectory{Entries: entries}, nil
	case SymbolicLink:
		return sb.enhanceSymlink(inode)
	case CharacterDevice, BlockDevice:
		major, minor := decodeDeviceNumbers(inode.core[:])
		return EnhancedDevice{Major: major, Minor: minor}, nil
	default:
		return nil, unsupportedFeature("inode %d: unrecognized file type", inode.Number)
	}
}

func (sb *Superblock) enhanceSymlink(inode *Inode) (Enhanced, error) {
	if inode.Stat.Size < 60 {
		if inode.flags != 0 {
			return nil, assumptionFailed("inode %d: short symlink must have no flags set, found %#x", inode.Number, uint32(inode.flags))
		}
		target := strings.TrimRight(string(inode.core[:inode.Stat.Size]), "\x00")
		return EnhancedSymlink{Target: target}, nil
	}
	if inode.flags&^inodeFlagExtents != 0 {
		return nil, unsupportedFeature("inode %d: long symlink has unsupported flags %#x", inode.Number, uint32(inode.flags&^inodeFlagExtents))
	}
	r, err := sb.Open(inode)
	if err != nil {
		return nil, wrapf(err, "inode %d: opening symlink target", inode.Number)
	}
	data, err := r.ReadAll()
	if err != nil {
		return nil, wrapf(err, "inode %d: reading symlink target", inode.Number)
	}
	target := strings.TrimRight(string(data), "\x00")
	return EnhancedSymlink{Target: target}, nil
}

// decodeDeviceNumbers unpacks major/minor device numbers from an inode's
// core region using the classic Linux packing, per spec.md §4.7.
func decodeDeviceNumbers(core []byte) (major, minor uint32) {
	if core[0] != 0 || core[1] != 0 {
		return uint32(core[1]), uint32(core[0])
	}
	major = uint32(core[5]) | uint32(core[6]&0x0F)<<8
	minor = uint32(core[4]) | uint32(core[7])<<12 | uint32(core[6]&0xF0)>>4<<8
	return major, minor
}

// ResolvePath resolves a slash-separated path from the root directory,
// requiring every non-final component to itself be a directory.
func (sb *Superblock) ResolvePath(path string) (*Inode, error) {
	trimmed := strings.Trim(path, "/")
	current, err := sb.Root()
	if err != nil {
		return nil, err
	}
	if trimmed == "" {
		return current, nil
	}
	components := strings.Split(trimmed, "/")
	for i, name := range components {
		enhanced, err := sb.Enhance(current)
		if err != nil {
			return nil, wrapf(err, "resolving path component %q", name)
		}
		dir, ok := enhanced.(EnhancedDirectory)
		if !ok {
			return nil, notFound("path component %q: %q is not a directory", name, strings.Join(components[:i], "/"))
		}
		var next *Inode
		for _, e := range dir.Entries {
			if e.Name == name {
				next, err = sb.LoadInode(e.Inode)
				if err != nil {
					return nil, wrapf(err, "loading path component %q", name)
				}
				break
			}
		}
		if next == nil {
			return nil, notFound("path component %q not found", name)
		}
		current = next
	}
	return current, nil
}

// Visitor observes one node during Walk. Returning false stops the walk.
type Visitor func(sb *Superblock, path string, inode *Inode, enhanced Enhanced) bool

// Walk performs a preorder traversal of inode (and, if it is a directory,
// its descendants), skipping "." and "..", calling visit for every node. A
// visit returning false stops the traversal immediately — no further
// siblings, ancestors' remaining siblings, or descendants are visited.
func (sb *Superblock) Walk(inode *Inode, path string, visit Visitor) error {
	_, err := sb.walk(inode, path, visit)
	return err
}

// walk is Walk's recursive core. Its bool return reports whether the
// traversal should continue; once a visit returns false, that false
// propagates up through every enclosing call so the whole walk stops,
// rather than only pruning the subtree it was returned from.
func (sb *Superblock) walk(inode *Inode, path string, visit Visitor) (bool, error) {
	enhanced, err := sb.Enhance(inode)
	if err != nil {
		return false, wrapf(err, "walking %q", path)
	}
	if !visit(sb, path, inode, enhanced) {
		return false, nil
	}
	dir, ok := enhanced.(EnhancedDirectory)
	if !ok {
		return true, nil
	}
	for _, e := range dir.Entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child, err := sb.LoadInode(e.Inode)
		if err != nil {
			return false, wrapf(err, "walking %q", path+"/"+e.Name)
		}
		childPath := strings.TrimLeft(path+"/"+e.Name, "/")
		cont, err := sb.walk(child, "/"+childPath, visit)
		if err != nil {
			return false, err
		}
		if !cont {
			return false, nil
		}
	}
	return true, nil
}
