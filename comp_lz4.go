package squashfs

import "github.com/pierrec/lz4/v4"

// lz4Decompress handles compression id 5. mksquashfs uses liblz4's raw block
// API (not the lz4 frame format) since the uncompressed size is always known
// from the block's owning inode or the metadata-block header.
func lz4Decompress(src []byte, outSize int) ([]byte, error) {
	dst := make([]byte, outSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
