package ext4

import "github.com/sirupsen/logrus"

// ChecksumPolicy controls how strict superblock construction is about
// metadata checksums (spec.md §6).
type ChecksumPolicy int

const (
	// ChecksumsRequired fails construction with NotFound if the filesystem
	// was not built with the metadata_csum feature. This is the default:
	// a caller that didn't ask for a weaker guarantee gets one.
	ChecksumsRequired ChecksumPolicy = iota
	// ChecksumsEnabled verifies checksums when the filesystem has them, but
	// tolerates an image that was never given metadata_csum at mkfs time.
	ChecksumsEnabled
)

// Options configures how a Superblock is constructed from a byte source.
type Options struct {
	// Checksums selects how strict checksum handling is. The zero value is
	// ChecksumsRequired.
	Checksums ChecksumPolicy

	// Logger receives one debug-level line from Open with the parsed
	// geometry (block size, block-group count, inodes per group); nothing
	// else is logged. A nil Logger disables logging entirely, matching the
	// silent-by-default idiom a library should have.
	Logger logrus.FieldLogger

	// Crypto is invoked on file content and filenames the on-disk metadata
	// marks as encrypted. The zero value is a no-op identity hook.
	Crypto ContentCrypto
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(discardWriter{})
		return l
	}
	return o.Logger
}

func (o Options) crypto() ContentCrypto {
	if o.Crypto == nil {
		return NoneCrypto{}
	}
	return o.Crypto
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
