package extfs

import "io"

// ReadAt implements io.ReaderAt over the inode's data, honoring sparse
// holes and uninitialized extents as zero-filled ranges without ever
// reading through to their (nonexistent or unwritten) physical blocks.
// Every call resolves its own blocks from scratch: an Inode retains no
// mutable read state, so concurrent ReadAt calls on the same Inode are
// independent and safe.
func (in *Inode) ReadAt(p []byte, off int64) (int, error) {
	size := in.Size()
	requested := len(p)
	if off < 0 {
		return 0, errOutOfRange("file read", "negative offset")
	}
	if off >= size {
		return 0, io.EOF
	}
	if off+int64(len(p)) > size {
		p = p[:size-off]
	}

	blockSize := int64(in.fs.sb.geo.blockSize)
	total := 0
	for total < len(p) {
		cur := off + int64(total)
		logical := uint32(cur / blockSize)
		offInBlock := cur % blockSize

		m, err := in.lookupBlock(logical)
		if err != nil {
			return total, err
		}

		avail := blockSize - offInBlock
		want := int64(len(p) - total)
		n := avail
		if n > want {
			n = want
		}

		if m.Hole || !m.Initialized {
			for i := int64(0); i < n; i++ {
				p[total+int(i)] = 0
			}
		} else {
			buf := make([]byte, n)
			readOff := int64(m.Physical)*blockSize + offInBlock
			if _, err := in.fs.r.ReadAt(buf, readOff); err != nil {
				return total, errIO("file data", readOff, err)
			}
			copy(p[total:], buf)
		}
		total += int(n)
	}

	if total < requested {
		return total, io.EOF
	}
	return total, nil
}

// SymlinkTarget returns the decoded link target, resolving the inline
// (target < 60 bytes, stored directly in i_block) and block-mapped forms.
func (in *Inode) SymlinkTarget() ([]byte, error) {
	if in.Kind() != KindSymlink {
		return nil, errOutOfRange("symlink target", "inode is not a symlink")
	}
	size := in.Size()
	if size < 60 && !in.usesExtentTree() {
		return append([]byte(nil), in.raw.Block[:size]...), nil
	}
	buf := make([]byte, size)
	if _, err := in.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
