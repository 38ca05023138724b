package extfs

import (
	"bytes"
	"fmt"

	"github.com/lunixbochs/struc"
)

// GroupDesc is a decoded block group descriptor, combining lo/hi halves
// where the 64BIT feature widens the on-disk record.
type GroupDesc struct {
	BlockBitmap     uint64
	InodeBitmap     uint64
	InodeTable      uint64
	FreeBlocksCount uint32
	FreeInodesCount uint32
	UsedDirsCount   uint32
	ItableUnused    uint32
	Flags           uint16
	Checksum        uint16
}

const (
	bgFlagInodeUninit = 0x1
	bgFlagBlockUninit = 0x2
	bgFlagItableZeroed = 0x4
)

// InodeUninit reports whether this group's inode table has never been
// initialized (BLOCK_GROUP_INODE_UNINIT).
func (g GroupDesc) InodeUninit() bool { return g.Flags&bgFlagInodeUninit != 0 }

// BlockUninit reports whether this group's block bitmap can be treated as
// entirely free without reading it (BLOCK_GROUP_BLOCK_UNINIT).
func (g GroupDesc) BlockUninit() bool { return g.Flags&bgFlagBlockUninit != 0 }

func (sb *Superblock) descriptorTableOffset() int64 {
	descBlock := uint64(sb.geo.firstDataBlock + 1)
	return int64(descBlock) * int64(sb.geo.blockSize)
}

// Group decodes and returns the descriptor for block group n, verifying
// its checksum against the algorithm selected by METADATA_CSUM/GDT_CSUM.
func (fsys *FS) Group(n uint32) (GroupDesc, error) {
	if n >= fsys.sb.geo.groupCount {
		return GroupDesc{}, errOutOfRange("group descriptor", fmt.Sprintf("group %d >= %d", n, fsys.sb.geo.groupCount))
	}

	descSize := fsys.sb.geo.descSize
	offset := fsys.sb.descriptorTableOffset() + int64(n)*int64(descSize)
	data := make([]byte, descSize)
	if _, err := fsys.r.ReadAt(data, offset); err != nil {
		return GroupDesc{}, errIO("group descriptor", offset, err)
	}

	is64 := fsys.sb.geo.is64Bit && descSize >= 64

	var lo rawGroupDesc32
	var hiExt rawGroupDesc64
	var storedCsum uint16
	if is64 {
		if err := struc.Unpack(bytes.NewReader(data), &hiExt); err != nil {
			return GroupDesc{}, errCorrupt("group descriptor", offset, err.Error())
		}
		lo = hiExt.rawGroupDesc32
		storedCsum = lo.Checksum
	} else {
		if err := struc.Unpack(bytes.NewReader(data[:32]), &lo); err != nil {
			return GroupDesc{}, errCorrupt("group descriptor", offset, err.Error())
		}
		storedCsum = lo.Checksum
	}

	g := GroupDesc{
		BlockBitmap:     combineLoHi32(lo.BlockBitmapLo, uint16(hiExt.BlockBitmapHi), is64),
		InodeBitmap:     combineLoHi32(lo.InodeBitmapLo, uint16(hiExt.InodeBitmapHi), is64),
		InodeTable:      combineLoHi32(lo.InodeTableLo, uint16(hiExt.InodeTableHi), is64),
		FreeBlocksCount: combineLoHi16(lo.FreeBlocksCountLo, hiExt.FreeBlocksCountHi, is64),
		FreeInodesCount: combineLoHi16(lo.FreeInodesCountLo, hiExt.FreeInodesCountHi, is64),
		UsedDirsCount:   combineLoHi16(lo.UsedDirsCountLo, hiExt.UsedDirsCountHi, is64),
		ItableUnused:    combineLoHi16(lo.ItableUnusedLo, hiExt.ItableUnusedHi, is64),
		Flags:           lo.Flags,
		Checksum:        storedCsum,
	}

	if g.FreeInodesCount > fsys.sb.geo.inodesPerGroup {
		return g, errCorrupt("group descriptor", offset,
			fmt.Sprintf("free inodes %d exceeds inodes_per_group %d", g.FreeInodesCount, fsys.sb.geo.inodesPerGroup))
	}

	computed := fsys.groupDescChecksum(n, data)
	if computed != storedCsum && (fsys.sb.geo.hasMetadataCsum || fsys.sb.geo.hasGDTCsum) {
		if err := fsys.checksumPolicy(errChecksum("group descriptor", offset, uint32(computed), uint32(storedCsum))); err != nil {
			return g, err
		}
	}

	return g, nil
}

// groupDescChecksum recomputes the descriptor checksum, choosing crc32c
// (METADATA_CSUM) or legacy crc16 (GDT_CSUM) as documented in §4.3.
func (fsys *FS) groupDescChecksum(group uint32, data []byte) uint16 {
	descSize := int(fsys.sb.geo.descSize)
	csumOffset := 30 // both layouts store the low checksum at byte 30
	buf := zeroed(data[:descSize], csumOffset, 2)
	if fsys.sb.geo.hasMetadataCsum {
		h := crc32cSeed(fsys.sb.checksumSeed(), le32(group))
		h = crc32cSeed(h, buf)
		return uint16(h)
	}
	seed := crc16(0xFFFF, fsys.sb.raw.UUID[:])
	seed = crc16(seed, le32(group))
	return crc16(seed, buf)
}
