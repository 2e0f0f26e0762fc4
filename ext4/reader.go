package ext4

import "io"

// FileReader is a seekable, random-access view over one regular file's
// logical byte stream, synthesising zeros for sparse holes between
// extents. It borrows the owning Superblock's byte source for its
// lifetime; it holds no write capability.
type FileReader struct {
	sb        *Superblock
	extents   []Extent
	pos       uint64
	size      uint64
	crypto    ContentCrypto
	encrypted bool
}

// newFileReader wraps an already-materialized, sorted extent list; the
// list is kept as-is and not re-parsed on every read. crypto is invoked
// per page only when encrypted is true, per spec.md §6's encryption hook.
func newFileReader(sb *Superblock, extents []Extent, size uint64, crypto ContentCrypto, encrypted bool) *FileReader {
	return &FileReader{sb: sb, extents: extents, size: size, crypto: crypto, encrypted: encrypted}
}

// Size returns the on-disk size of the file this reader was opened over.
func (r *FileReader) Size() uint64 {
	return r.size
}

// Seek repositions the reader. whence follows io.Seeker conventions; the
// resulting position must lie in [0, size], and a position outside it
// (negative, or beyond size as with io.SeekEnd and a positive offset) is
// rejected with an error and leaves the position unchanged.
func (r *FileReader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(r.pos)
	case io.SeekEnd:
		base = int64(r.size)
	default:
		return 0, assumptionFailed("invalid seek whence %d", whence)
	}
	newPos := base + offset
	if newPos < 0 || uint64(newPos) > r.size {
		return 0, assumptionFailed("seek to %d is outside file bounds [0, %d]", newPos, r.size)
	}
	r.pos = uint64(newPos)
	return int64(r.pos), nil
}

// Read implements io.Reader over the reconstructed logical byte stream,
// per spec.md §4.5: locate the extent covering the current block, read
// directly from it, or zero-fill across a sparse hole up to the next
// extent (or end of file).
func (r *FileReader) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}

	blockSize := uint64(r.sb.blockSize)
	wantedBlock := r.pos / blockSize
	within := r.pos % blockSize

	remaining := r.size - r.pos
	maxRead := uint64(len(buf))
	if remaining < maxRead {
		maxRead = remaining
	}

	for _, ext := range r.extents {
		extEnd := uint64(ext.Part) + uint64(ext.Len)
		if wantedBlock < uint64(ext.Part) || wantedBlock >= extEnd {
			continue
		}
		bytesThroughExtent := (wantedBlock-uint64(ext.Part))*blockSize + within
		remainingInExtent := uint64(ext.Len)*blockSize - bytesThroughExtent
		toRead := remainingInExtent
		if maxRead < toRead {
			toRead = maxRead
		}
		if r.encrypted {
			// DecryptPage must see a whole, page-aligned page per spec.md
			// §9, so a single Read never spans more than the rest of the
			// current block when the file is encrypted.
			if remainingInPage := blockSize - within; toRead > remainingInPage {
				toRead = remainingInPage
			}
		}
		if toRead == 0 {
			return 0, io.EOF
		}
		if ext.Start == 0 {
			return 0, assumptionFailed("extent for logical block %d resolves to physical block 0", wantedBlock)
		}
		if r.encrypted {
			pageOffset := ext.Start*blockSize + (wantedBlock-uint64(ext.Part))*blockSize
			page := make([]byte, blockSize)
			if err := readExactAt(r.sb.src, page, int64(pageOffset)); err != nil {
				return 0, wrapf(err, "reading file content at offset %d", pageOffset)
			}
			if err := r.crypto.DecryptPage(nil, page, wantedBlock); err != nil {
				return 0, wrapf(err, "decrypting page at logical block %d", wantedBlock)
			}
			copy(buf[:toRead], page[within:within+toRead])
		} else {
			offset := ext.Start*blockSize + bytesThroughExtent
			if err := readExactAt(r.sb.src, buf[:toRead], int64(offset)); err != nil {
				return 0, wrapf(err, "reading file content at offset %d", offset)
			}
		}
		r.pos += toRead
		return int(toRead), nil
	}

	var holeSize uint64 = ^uint64(0)
	for _, ext := range r.extents {
		if uint64(ext.Part) > wantedBlock {
			candidate := (uint64(ext.Part) - wantedBlock) * blockSize
			if candidate < holeSize {
				holeSize = candidate
			}
		}
	}
	if holeSize > maxRead {
		holeSize = maxRead
	}
	if holeSize == 0 {
		return 0, io.EOF
	}
	for i := uint64(0); i < holeSize; i++ {
		buf[i] = 0
	}
	r.pos += holeSize
	return int(holeSize), nil
}

// ReadAll reads the reader to completion, returning its full content.
// Callers opening small regular files (symlink targets, directory
// contents) use this instead of buffering manually.
func (r *FileReader) ReadAll() ([]byte, error) {
	buf := make([]byte, r.size)
	off := 0
	for uint64(off) < r.size {
		n, err := r.Read(buf[off:])
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n == 0 {
			break
		}
		off += n
	}
	return buf[:off], nil
}
