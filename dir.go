package extfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
)

// DirEntry is one decoded directory record. Name is raw bytes: ext
// filesystems place no encoding requirement on file names, so this
// package never assumes UTF-8.
type DirEntry struct {
	InodeNumber uint32
	Name        []byte
	FileType    uint8
}

const (
	dirFileTypeDir     = 2
	dirFileTypeSymlink = 7
	dirEntryTailType   = 0xDE
)

// DirIterator walks a directory's entries in on-disk block order. An
// HTree-indexed directory hides its index behind the ".." record's
// rec_len, so a plain linear scan of every logical block already visits
// every leaf and produces the full listing without decoding the index
// at all.
type DirIterator struct {
	in      *Inode
	blocks  []uint32 // logical block numbers making up the leaf sequence
	blkIdx  int
	entries []DirEntry
	entIdx  int
	err     error
}

// Readdir returns an iterator over the directory's entries, including "."
// and "..".
func (in *Inode) Readdir() (*DirIterator, error) {
	if !in.IsDir() {
		return nil, errOutOfRange("readdir", "inode is not a directory")
	}

	blockSize := int64(in.fs.sb.geo.blockSize)
	numBlocks := uint32((in.Size() + blockSize - 1) / blockSize)

	it := &DirIterator{in: in}

	for i := uint32(0); i < numBlocks; i++ {
		it.blocks = append(it.blocks, i)
	}
	return it, nil
}

// Next returns the next entry, or io.EOF once exhausted. Once Next returns
// a non-EOF error the iterator is done; subsequent calls return the same
// error.
func (it *DirIterator) Next() (DirEntry, error) {
	if it.err != nil {
		return DirEntry{}, it.err
	}

	for {
		if it.entIdx < len(it.entries) {
			e := it.entries[it.entIdx]
			it.entIdx++
			return e, nil
		}
		if it.blkIdx >= len(it.blocks) {
			it.err = io.EOF
			return DirEntry{}, io.EOF
		}

		entries, err := it.in.readDirBlockEntries(it.blocks[it.blkIdx])
		it.blkIdx++
		if err != nil {
			it.err = err
			return DirEntry{}, err
		}
		it.entries = entries
		it.entIdx = 0
	}
}

// readDirBlockEntries decodes one linear directory block into its entry
// list, skipping tombstones (inode == 0) and the METADATA_CSUM tail
// pseudo-entry.
func (in *Inode) readDirBlockEntries(logicalBlock uint32) ([]DirEntry, error) {
	blockSize := int(in.fs.sb.geo.blockSize)
	m, err := in.lookupBlock(logicalBlock)
	if err != nil {
		return nil, err
	}
	data := make([]byte, blockSize)
	if !m.Hole {
		off := int64(m.Physical) * int64(blockSize)
		if _, err := in.fs.r.ReadAt(data, off); err != nil {
			return nil, errIO("directory block", off, err)
		}
	}

	var entries []DirEntry
	offset := 0
	for offset+8 <= blockSize {
		var hdr rawDirEntry2
		if err := struc.Unpack(bytes.NewReader(data[offset:offset+8]), &hdr); err != nil {
			return nil, errCorrupt("directory entry", int64(offset), err.Error())
		}

		if hdr.RecLen < 8 || hdr.RecLen%4 != 0 {
			return nil, errCorrupt("directory entry", int64(offset), fmt.Sprintf("invalid rec_len %d", hdr.RecLen))
		}
		if offset+int(hdr.RecLen) > blockSize {
			return nil, errCorrupt("directory entry", int64(offset), "rec_len crosses block boundary")
		}
		if int(hdr.NameLen) > int(hdr.RecLen)-8 {
			return nil, errCorrupt("directory entry", int64(offset), "name_len exceeds rec_len")
		}

		isTail := hdr.Inode == 0 && hdr.NameLen == 0 && hdr.FileType == dirEntryTailType && offset+12 == blockSize
		if isTail {
			if in.fs.sb.geo.hasMetadataCsum {
				if err := in.verifyDirBlockChecksum(data, logicalBlock); err != nil {
					if err := in.fs.checksumPolicy(err); err != nil {
						return entries, err
					}
				}
			}
		} else if hdr.Inode != 0 && hdr.NameLen > 0 {
			name := append([]byte(nil), data[offset+8:offset+8+int(hdr.NameLen)]...)
			entries = append(entries, DirEntry{
				InodeNumber: hdr.Inode,
				Name:        name,
				FileType:    hdr.FileType,
			})
		}

		offset += int(hdr.RecLen)
	}

	return entries, nil
}

func (in *Inode) verifyDirBlockChecksum(data []byte, logicalBlock uint32) error {
	blockSize := len(data)
	if blockSize < 12 {
		return nil
	}
	stored := leU32(data[blockSize-4 : blockSize])
	seed := in.fs.sb.checksumSeed()
	h := crc32cSeed(seed, le32(in.number))
	h = crc32cSeed(h, le32(in.raw.Generation))
	h = crc32cSeed(h, data[:blockSize-12])
	if h != stored {
		return errChecksum(fmt.Sprintf("directory block %d", logicalBlock), 0, h, stored)
	}
	return nil
}

