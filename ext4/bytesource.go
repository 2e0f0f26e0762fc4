package ext4

import "io"

// ByteSource is the single capability the core needs from whatever backs an
// ext4 image: a positioned read that never mutates a hidden cursor. It is
// satisfied directly by *os.File and by any io.ReaderAt, so callers never
// need a package-specific adapter.
//
// Short reads are permitted, mirroring io.ReaderAt's own contract: an
// implementation returns n < len(buf) only together with a non-nil error.
type ByteSource interface {
	io.ReaderAt
}

// readExactAt keeps reading until buf is full, tolerating short reads that
// come back without an error. It fails with io.ErrUnexpectedEOF if the
// source runs out of bytes first; any other error is returned at once,
// without a retry.
// It is the derived helper spec.md §4.1 calls for atop the bare read_at
// capability.
func readExactAt(src ByteSource, buf []byte, offset int64) error {
	total := 0
	for total < len(buf) {
		n, err := src.ReadAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			if err == io.EOF && total == len(buf) {
				return nil
			}
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
