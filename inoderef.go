package squashfs

import "fmt"

// inodeRef is the packed 48-bit reference format used throughout the image
// to locate a record inside a metadata-block chain: the high bits give the
// byte offset (relative to the owning table's start) of the metadata block
// holding the record, and the low 16 bits give the byte offset of the
// record within that block's decompressed payload.
type inodeRef uint64

func packRef(block uint64, offset uint16) inodeRef {
	return inodeRef((block << 16) | uint64(offset))
}

func (i inodeRef) Index() uint32 {
	return uint32((uint64(i) >> 16) & 0xffffffff)
}

func (i inodeRef) Offset() uint32 {
	return uint32(uint64(i) & 0xffff)
}

func (i inodeRef) String() string {
	return fmt.Sprintf("inodeRef(index=0x%x,offset=0x%x)", i.Index(), i.Offset())
}
