package squashfs

import (
	"bytes"
	"io"
)

// ScanResult is one candidate superblock location found by ScanForSuperblocks.
type ScanResult struct {
	Offset int64
	Super  *Superblock
}

// ScanForSuperblocks searches r, up to size bytes, for "hsqs" magic byte
// sequences and attempts to parse a valid SquashFS 4.0 superblock at each
// one found, for locating an image embedded inside a larger file (for
// example a firmware dump) without already knowing its offset. chunk
// controls the read granularity; a larger chunk means fewer ReadAt calls at
// the cost of more memory, 1<<20 is a reasonable default.
func ScanForSuperblocks(r io.ReaderAt, size int64, chunk int) ([]ScanResult, error) {
	if chunk <= 0 {
		chunk = 1 << 20
	}
	magicBytes := []byte{'h', 's', 'q', 's'}

	var results []ScanResult
	buf := make([]byte, chunk+len(magicBytes)-1)

	for pos := int64(0); pos < size; pos += int64(chunk) {
		want := buf
		if pos+int64(len(want)) > size {
			want = buf[:size-pos]
		}

		n, err := r.ReadAt(want, pos)
		if err != nil && err != io.EOF {
			return results, err
		}
		data := want[:n]

		search := 0
		for {
			idx := bytes.Index(data[search:], magicBytes)
			if idx == -1 {
				break
			}
			at := pos + int64(search+idx)
			search += idx + 1

			if at >= pos+int64(chunk) && pos+int64(chunk) < size {
				// found only in this window's boundary-overlap tail; the
				// next iteration will find it again as a fresh match.
				continue
			}

			sb, err := New(&offsetReaderAt{r: r, base: at})
			if err != nil {
				continue
			}
			results = append(results, ScanResult{Offset: at, Super: sb})
		}
	}

	return results, nil
}
