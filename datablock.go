package squashfs

import (
	"container/list"
	"fmt"
)

// dataBlockUncompressedFlag is bit 24 of a data block's packed size field:
// when set, the on-disk bytes are stored verbatim.
const dataBlockUncompressedFlag = 1 << 24

// dataBlockSizeMask extracts the on-disk byte count from a packed size by
// clearing bit 24 only, per the format's size & 0xFEFFFFFF contract.
const dataBlockSizeMask = ^uint32(dataBlockUncompressedFlag)

type dataBlockKey struct {
	start int64
	size  uint32
}

// dataBlockCache is a small bounded LRU cache of decompressed data blocks,
// as explicitly permitted (not required) by spec component 4.D. No
// third-party LRU package appears anywhere in the retrieved example corpus
// (or its transitive dependency closure) for this kind of byte-slice cache,
// so this is hand-rolled over container/list — see DESIGN.md.
type dataBlockCache struct {
	cap   int
	items map[dataBlockKey]*list.Element
	order *list.List
}

type dataBlockCacheEntry struct {
	key  dataBlockKey
	data []byte
}

func newDataBlockCache(capacity int) *dataBlockCache {
	return &dataBlockCache{
		cap:   capacity,
		items: make(map[dataBlockKey]*list.Element),
		order: list.New(),
	}
}

func (c *dataBlockCache) get(key dataBlockKey) ([]byte, bool) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*dataBlockCacheEntry).data, true
	}
	return nil, false
}

func (c *dataBlockCache) put(key dataBlockKey, data []byte) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*dataBlockCacheEntry).data = data
		return
	}
	el := c.order.PushFront(&dataBlockCacheEntry{key: key, data: data})
	c.items[key] = el
	for c.order.Len() > c.cap {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.items, back.Value.(*dataBlockCacheEntry).key)
	}
}

// readDataBlock reads one file data block (or a fragment block, which uses
// the same on-disk framing), starting at absolute offset start, with the
// packed size word size and the expected uncompressed size outSize
// (normally the filesystem's block size).
func readDataBlock(sb *Superblock, start int64, size uint32, outSize int) ([]byte, error) {
	onDiskSize := size & dataBlockSizeMask
	key := dataBlockKey{start, size}

	if sb.dataCache != nil {
		if data, ok := sb.dataCache.get(key); ok {
			return data, nil
		}
	}

	buf := make([]byte, onDiskSize)
	if _, err := sb.fs.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("%w: data block at %d: %v", ErrTruncatedImage, start, err)
	}

	var out []byte
	if size&dataBlockUncompressedFlag != 0 {
		out = buf
	} else {
		var err error
		out, err = sb.Comp.decompress(buf, outSize)
		if err != nil {
			return nil, err
		}
	}

	if sb.dataCache != nil {
		sb.dataCache.put(key, out)
	}
	return out, nil
}
