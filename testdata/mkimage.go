//go:build ignore

// mkimage builds testdata/sample.img, a small hand-assembled ext4 image
// containing nested directories,
// an empty file, a sparse file with a real hole, a hard link, char/block
// device nodes, an in-inode extended attribute, a symlink, and inodes with
// timestamps before 1970 and after 2038.
//
// It deliberately leaves METADATA_CSUM and GDT_CSUM off the generated
// superblock, so no checksum verification path is exercised by this image.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	blockSize      = 1024
	inodeSize      = 256
	inodesPerGroup = 128
	blocksPerGroup = 8192
	firstDataBlock = 1

	incompatFiletype = 0x0002
	incompatExtents  = 0x0040

	extentMagic = 0xF30A

	dirTypeReg      = 1
	dirTypeDir      = 2
	dirTypeChardev  = 3
	dirTypeBlockdev = 4
	dirTypeSymlink  = 7

	modeDir    = 0040000
	modeReg    = 0100000
	modeChar   = 0020000
	modeBlock  = 0060000
	modeSymlnk = 0120000
)

// image accumulates fixed-size blocks by number.
type image struct {
	blocks   map[uint32][]byte
	nextData uint32
}

func (im *image) block(n uint32) []byte {
	b, ok := im.blocks[n]
	if !ok {
		b = make([]byte, blockSize)
		im.blocks[n] = b
	}
	return b
}

func (im *image) allocBlock() uint32 {
	n := im.nextData
	im.nextData++
	im.block(n) // ensure it exists, zeroed
	return n
}

func main() {
	if err := build("testdata/sample.img"); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote testdata/sample.img")
}

func build(path string) error {
	im := &image{blocks: map[uint32][]byte{}}

	inodeTableBlocks := (uint32(inodesPerGroup)*uint32(inodeSize) + blockSize - 1) / blockSize
	groupDescBlock := uint32(firstDataBlock + 1)
	blockBitmapBlock := groupDescBlock + 1
	inodeBitmapBlock := blockBitmapBlock + 1
	inodeTableStart := inodeBitmapBlock + 1
	im.nextData = inodeTableStart + inodeTableBlocks

	inodes := map[uint32][]byte{}
	putInode := func(n uint32, data []byte) { inodes[n] = data }

	// --- file/dir content -------------------------------------------------

	helloContent := []byte("hello from faux\n")
	helloBlk := im.allocBlock()
	copy(im.block(helloBlk), helloContent)

	hardlinkContent := []byte("linked content\n")
	hardlinkBlk := im.allocBlock()
	copy(im.block(hardlinkBlk), hardlinkContent)

	sparseBlkA := im.allocBlock()
	copy(im.block(sparseBlkA), bytes.Repeat([]byte{0xAA}, blockSize))
	sparseBlkC := im.allocBlock()
	copy(im.block(sparseBlkC), bytes.Repeat([]byte{0xCC}, 512))

	fauxBlk := im.allocBlock()
	writeDirBlock(im.block(fauxBlk), []dirEnt{
		{13, ".", dirTypeDir},
		{12, "..", dirTypeDir},
		{14, "hello.txt", dirTypeReg},
	})

	homeBlk := im.allocBlock()
	writeDirBlock(im.block(homeBlk), []dirEnt{
		{12, ".", dirTypeDir},
		{2, "..", dirTypeDir},
		{13, "faux", dirTypeDir},
	})

	lostFoundBlk := im.allocBlock()
	writeDirBlock(im.block(lostFoundBlk), []dirEnt{
		{11, ".", dirTypeDir},
		{2, "..", dirTypeDir},
	})

	rootBlk := im.allocBlock()
	writeDirBlock(im.block(rootBlk), []dirEnt{
		{2, ".", dirTypeDir},
		{2, "..", dirTypeDir},
		{11, "lost+found", dirTypeDir},
		{12, "home", dirTypeDir},
		{15, "empty-file", dirTypeReg},
		{16, "sparse-file", dirTypeReg},
		{17, "hardlink-file", dirTypeReg},
		{17, "hardlink-file2", dirTypeReg},
		{18, "chardev", dirTypeChardev},
		{19, "blockdev", dirTypeBlockdev},
		{20, "xattr-file", dirTypeReg},
		{21, "symlink-file", dirTypeSymlink},
		{22, "old-timestamp-file", dirTypeReg},
		{23, "future-timestamp-file", dirTypeReg},
	})

	// --- inodes -------------------------------------------------------

	putInode(2, dirInode(modeDir|0755, rootBlk, 14+2))
	putInode(11, dirInode(modeDir|0755, lostFoundBlk, 2))
	putInode(12, dirInode(modeDir|0755, homeBlk, 3))
	putInode(13, dirInode(modeDir|0755, fauxBlk, 3))
	putInode(14, regInode(0644, helloBlk, uint64(len(helloContent))))
	putInode(15, emptyRegInode(0644))
	putInode(16, sparseRegInode(0644, sparseBlkA, sparseBlkC))
	putInode(17, regInodeLinks(0644, hardlinkBlk, uint64(len(hardlinkContent)), 2))
	putInode(18, deviceInode(modeChar|0644, 1, 5))
	putInode(19, deviceInode(modeBlock|0640, 8, 1))
	putInode(20, xattrRegInode(0644))
	putInode(21, symlinkInode("empty-file"))
	putInode(22, timestampRegInode(0644, -631152000, 0))
	putInode(23, timestampRegInode(0644, 0, 1)) // encoded below

	// --- assemble inode table ------------------------------------------

	tableBytes := make([]byte, inodeTableBlocks*blockSize)
	for n, data := range inodes {
		off := (n - 1) * inodeSize
		copy(tableBytes[off:off+inodeSize], data)
	}
	for i := uint32(0); i < inodeTableBlocks; i++ {
		copy(im.block(inodeTableStart+i), tableBytes[i*blockSize:(i+1)*blockSize])
	}

	// --- group descriptor -----------------------------------------------

	gd := make([]byte, 32)
	binary.LittleEndian.PutUint32(gd[0:4], blockBitmapBlock)
	binary.LittleEndian.PutUint32(gd[4:8], inodeBitmapBlock)
	binary.LittleEndian.PutUint32(gd[8:12], inodeTableStart)
	binary.LittleEndian.PutUint16(gd[12:14], 1000) // free blocks (unchecked)
	binary.LittleEndian.PutUint16(gd[14:16], uint16(inodesPerGroup-len(inodes)))
	binary.LittleEndian.PutUint16(gd[16:18], 4) // used dirs
	copy(im.block(groupDescBlock), gd)

	// --- superblock -------------------------------------------------------

	totalBlocks := im.nextData + 64 // headroom past the last allocated block
	sb := buildSuperblock(totalBlocks)

	// --- serialize --------------------------------------------------------

	maxBlock := totalBlocks
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate(int64(maxBlock) * blockSize); err != nil {
		return err
	}
	if _, err := f.WriteAt(sb, 1024); err != nil {
		return err
	}
	for n, data := range im.blocks {
		if _, err := f.WriteAt(data, int64(n)*blockSize); err != nil {
			return err
		}
	}
	return nil
}

func buildSuperblock(blocksCount uint32) []byte {
	buf := make([]byte, 1024)
	le32 := binary.LittleEndian.PutUint32
	le16 := binary.LittleEndian.PutUint16

	le32(buf[0:4], inodesPerGroup)            // s_inodes_count
	le32(buf[4:8], blocksCount)                // s_blocks_count_lo
	le32(buf[8:12], 0)                         // s_r_blocks_count_lo
	le32(buf[12:16], blocksCount/2)            // s_free_blocks_count_lo
	le32(buf[16:20], 100)                      // s_free_inodes_count
	le32(buf[20:24], firstDataBlock)           // s_first_data_block
	le32(buf[24:28], 0)                        // s_log_block_size (1024 << 0)
	le32(buf[28:32], 0)                        // s_log_cluster_size
	le32(buf[32:36], blocksPerGroup)           // s_blocks_per_group
	le32(buf[36:40], blocksPerGroup)           // s_clusters_per_group
	le32(buf[40:44], inodesPerGroup)           // s_inodes_per_group
	le16(buf[56:58], 0xEF53)                   // s_magic
	le32(buf[76:80], 1)                        // s_rev_level (dynamic)
	le32(buf[84:88], 11)                       // s_first_ino
	le16(buf[88:90], inodeSize)                // s_inode_size
	le32(buf[96:100], incompatFiletype|incompatExtents) // s_feature_incompat
	copy(buf[104:120], sampleUUID[:])          // s_uuid
	copy(buf[120:136], []byte("extfs-sample\x00\x00\x00\x00"))

	return buf
}

var sampleUUID = [16]byte{0x4a, 0xa3, 0x1c, 0x9e, 0xd1, 0x02, 0x4b, 0x8f, 0x9a, 0x77, 0x63, 0x2d, 0x0e, 0x55, 0xf1, 0x0b}

// --- inode builders --------------------------------------------------

func newInodeBuf() []byte { return make([]byte, inodeSize) }

func writeInodeBase(buf []byte, mode uint16, size uint64, links uint16, flags uint32,
	block [60]byte, generation uint32, mtime, atime, ctime, dtime int32) {
	le16 := binary.LittleEndian.PutUint16
	le32 := binary.LittleEndian.PutUint32
	le16(buf[0:2], mode)
	le32(buf[4:8], uint32(size))
	le32(buf[8:12], uint32(atime))
	le32(buf[12:16], uint32(ctime))
	le32(buf[16:20], uint32(mtime))
	le32(buf[20:24], uint32(dtime))
	le16(buf[26:28], links)
	le32(buf[28:32], uint32((size+511)/512))
	le32(buf[32:36], flags)
	copy(buf[40:100], block[:])
	le32(buf[100:104], generation)
	le32(buf[108:112], uint32(size>>32))
	// extra area: minimal isize covering the fixed extra fields
	le16(buf[128:130], 32)
}

func setExtraIsize(buf []byte, n uint16) { binary.LittleEndian.PutUint16(buf[128:130], n) }

func inlineExtentBlock(leaves []extentLeaf) [60]byte {
	var b [60]byte
	binary.LittleEndian.PutUint16(b[0:2], extentMagic)
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(leaves)))
	binary.LittleEndian.PutUint16(b[4:6], 4)
	binary.LittleEndian.PutUint16(b[6:8], 0) // depth
	for i, l := range leaves {
		off := 12 + i*12
		binary.LittleEndian.PutUint32(b[off:off+4], l.logical)
		binary.LittleEndian.PutUint16(b[off+4:off+6], l.length)
		binary.LittleEndian.PutUint16(b[off+6:off+8], uint16(l.physical>>32))
		binary.LittleEndian.PutUint32(b[off+8:off+12], uint32(l.physical))
	}
	return b
}

type extentLeaf struct {
	logical, length uint32
	physical        uint64
}

const inodeFlagExtents = 0x00080000

func dirInode(mode uint16, block uint32, linkCount uint16) []byte {
	buf := newInodeBuf()
	blk := inlineExtentBlock([]extentLeaf{{0, 1, uint64(block)}})
	writeInodeBase(buf, mode, blockSize, linkCount, inodeFlagExtents, blk, 0, 0, 0, 0, 0)
	return buf
}

func regInode(mode uint16, block uint32, size uint64) []byte {
	return regInodeLinks(mode, block, size, 1)
}

func regInodeLinks(mode uint16, block uint32, size uint64, links uint16) []byte {
	buf := newInodeBuf()
	blk := inlineExtentBlock([]extentLeaf{{0, 1, uint64(block)}})
	writeInodeBase(buf, modeReg|mode, size, links, inodeFlagExtents, blk, 0, 0, 0, 0, 0)
	return buf
}

func emptyRegInode(mode uint16) []byte {
	buf := newInodeBuf()
	var blk [60]byte
	binary.LittleEndian.PutUint16(blk[0:2], extentMagic)
	binary.LittleEndian.PutUint16(blk[4:6], 4)
	writeInodeBase(buf, modeReg|mode, 0, 1, inodeFlagExtents, blk, 0, 0, 0, 0, 0)
	return buf
}

func sparseRegInode(mode uint16, blockA, blockC uint32) []byte {
	buf := newInodeBuf()
	size := uint64(2*blockSize + blockSize/2)
	blk := inlineExtentBlock([]extentLeaf{
		{0, 1, uint64(blockA)},
		{2, 1, uint64(blockC)},
	})
	writeInodeBase(buf, modeReg|mode, size, 1, inodeFlagExtents, blk, 0, 0, 0, 0, 0)
	return buf
}

func deviceInode(mode uint16, major, minor uint32) []byte {
	buf := newInodeBuf()
	var blk [60]byte
	dev := (minor & 0xff) | (major << 8) | ((minor &^ 0xff) << 12)
	binary.LittleEndian.PutUint32(blk[0:4], dev)
	writeInodeBase(buf, mode, 0, 1, 0, blk, 0, 0, 0, 0, 0)
	return buf
}

func xattrRegInode(mode uint16) []byte {
	buf := newInodeBuf()
	var blk [60]byte
	binary.LittleEndian.PutUint16(blk[0:2], extentMagic)
	binary.LittleEndian.PutUint16(blk[4:6], 4)
	writeInodeBase(buf, modeReg|mode, 0, 1, inodeFlagExtents, blk, 0, 0, 0, 0, 0)
	setExtraIsize(buf, 32)

	extraStart := 128 + 32
	binary.LittleEndian.PutUint32(buf[extraStart:extraStart+4], 0xEA020000)

	entryOff := extraStart + 4
	name := []byte("comment")
	value := []byte("hi there\n")
	valStart := inodeSize - len(value)
	valOffs := valStart - entryOff

	buf[entryOff+0] = byte(len(name))
	buf[entryOff+1] = 1 // NameIndex: user.
	binary.LittleEndian.PutUint16(buf[entryOff+2:entryOff+4], uint16(valOffs))
	binary.LittleEndian.PutUint32(buf[entryOff+4:entryOff+8], 0)  // value_block
	binary.LittleEndian.PutUint32(buf[entryOff+8:entryOff+12], uint32(len(value)))
	binary.LittleEndian.PutUint32(buf[entryOff+12:entryOff+16], 0) // hash left 0: unchecked in this fixture
	copy(buf[entryOff+16:entryOff+16+len(name)], name)
	copy(buf[valStart:valStart+len(value)], value)

	return buf
}

func symlinkInode(target string) []byte {
	buf := newInodeBuf()
	var blk [60]byte
	copy(blk[:], target)
	writeInodeBase(buf, modeSymlnk|0777, uint64(len(target)), 1, 0, blk, 0, 0, 0, 0, 0)
	return buf
}

// timestampRegInode builds a zero-length regular file whose mtime is set
// either directly (epochHi=0) or via the epoch_hi extension (epochHi=1),
// selected by which of before/after is nonzero: before carries a raw
// pre-1970 int32 second count; after selects the post-2038 encoding of a
// fixed sample instant.
func timestampRegInode(mode uint16, before int32, after int) []byte {
	buf := newInodeBuf()
	var blk [60]byte
	binary.LittleEndian.PutUint16(blk[0:2], extentMagic)
	binary.LittleEndian.PutUint16(blk[4:6], 4)

	mtime := before
	if after != 0 {
		// target instant: 2200000000 (> 2^31-1, i.e. after 2038-01-19)
		const target = int64(2200000000)
		mtime = int32(target - (1 << 32))
	}
	writeInodeBase(buf, modeReg|mode, 0, 1, inodeFlagExtents, blk, 0, mtime, mtime, mtime, 0)
	setExtraIsize(buf, 32)
	if after != 0 {
		extraStart := 128
		binary.LittleEndian.PutUint32(buf[extraStart+4:extraStart+8], 1)  // ctime_extra: epoch_hi=1
		binary.LittleEndian.PutUint32(buf[extraStart+8:extraStart+12], 1) // mtime_extra
		binary.LittleEndian.PutUint32(buf[extraStart+12:extraStart+16], 1) // atime_extra
	}
	return buf
}

// --- directory block builder ------------------------------------------

type dirEnt struct {
	inode    uint32
	name     string
	fileType uint8
}

func writeDirBlock(block []byte, entries []dirEnt) {
	off := 0
	for i, e := range entries {
		recLen := align4(8 + len(e.name))
		if i == len(entries)-1 {
			recLen = len(block) - off
		}
		binary.LittleEndian.PutUint32(block[off:off+4], e.inode)
		binary.LittleEndian.PutUint16(block[off+4:off+6], uint16(recLen))
		block[off+6] = byte(len(e.name))
		block[off+7] = e.fileType
		copy(block[off+8:off+8+len(e.name)], e.name)
		off += recLen
	}
}

func align4(n int) int { return (n + 3) &^ 3 }
