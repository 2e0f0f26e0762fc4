package ext4

// ContentCrypto is the optional pluggable content-decryption capability
// named in spec.md §6 and §9. The core invokes it only for inodes whose
// ENCRYPT flag is set: on file pages read through Open and on entry names
// of such a directory. Encryption xattrs are not consulted. Everywhere
// else the hook is bypassed entirely, so a no-op implementation costs
// nothing on an unencrypted image.
type ContentCrypto interface {
	// DecryptPage decrypts one page of file content in place. pageAddr is
	// the logical page address (page-aligned, as the inode's extent map
	// expresses it) the buffer was read from.
	DecryptPage(context []byte, page []byte, pageAddr uint64) error

	// DecryptFilename decrypts an on-disk directory-entry name.
	DecryptFilename(context []byte, encrypted []byte) ([]byte, error)
}

// NoneCrypto is the reference ContentCrypto: identity on both paths. It is
// the default used whenever Options.Crypto is left unset.
type NoneCrypto struct{}

func (NoneCrypto) DecryptPage(_ []byte, _ []byte, _ uint64) error {
	return nil
}

func (NoneCrypto) DecryptFilename(_ []byte, encrypted []byte) ([]byte, error) {
	return encrypted, nil
}
