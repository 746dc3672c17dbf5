package squashfs

// lzoDecompress handles compression id 3. LZO is a valid, well-defined
// SquashFS compression id, but no maintained pure-Go LZO decoder exists in
// this module's dependency tree; images using it are recognized (Superblock
// validation accepts the id) but cannot have their blocks decompressed.
//
// See DESIGN.md for why this isn't backed by a real implementation.
func lzoDecompress(src []byte, outSize int) ([]byte, error) {
	return nil, ErrUnsupportedCompression
}
