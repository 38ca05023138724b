package extfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lunixbochs/struc"
)

const (
	superblockOffset = 1024
	superblockSize   = 1024
	extMagic         = 0xEF53
)

// Superblock is the parsed, feature-resolved primary superblock. It is
// decoded once by Open and cached for the lifetime of the FS handle; every
// field is immutable after ParseSuperblock returns.
type Superblock struct {
	raw rawSuperblock
	geo geometry
}

// ParseSuperblock reads and validates the 1024-byte superblock at its
// fixed offset, grounded on the manual field layout the teacher used for
// the same job but decoded through the struc-tagged rawSuperblock instead
// of individual binary.LittleEndian calls.
func ParseSuperblock(r io.ReaderAt) (*Superblock, error) {
	data := make([]byte, superblockSize)
	if _, err := r.ReadAt(data, superblockOffset); err != nil {
		return nil, errIO("superblock", superblockOffset, err)
	}

	var raw rawSuperblock
	if err := struc.Unpack(bytes.NewReader(data), &raw); err != nil {
		return nil, errCorrupt("superblock", superblockOffset, err.Error())
	}

	if uint32(raw.Magic) != extMagic {
		return nil, errBadMagic("superblock", superblockOffset, uint32(raw.Magic), extMagic)
	}

	sb := &Superblock{raw: raw}

	if unsupported := raw.FeatureIncompat &^ SupportedIncompat; unsupported != 0 {
		return nil, errUnsupported("superblock", fmt.Sprintf("incompat bits 0x%x", unsupported))
	}
	if raw.FeatureIncompat&incompatMetaBG != 0 {
		return nil, errUnsupported("superblock", "meta_bg")
	}

	blockSize := uint32(1024) << raw.LogBlockSize
	switch blockSize {
	case 1024, 2048, 4096, 8192, 16384, 32768, 65536:
	default:
		return nil, errCorrupt("superblock", superblockOffset, fmt.Sprintf("implausible block size %d", blockSize))
	}

	inodeSize := raw.InodeSize
	if raw.RevLevel == 0 {
		inodeSize = 128
	}
	if inodeSize < 128 || (inodeSize&(inodeSize-1)) != 0 {
		return nil, errCorrupt("superblock", superblockOffset, fmt.Sprintf("invalid inode size %d", inodeSize))
	}

	is64 := raw.FeatureIncompat&incompat64Bit != 0
	descSize := uint16(32)
	if is64 {
		descSize = raw.DescSize
		if descSize < 64 {
			descSize = 64
		}
	}

	blocksCount := combineLoHi32(raw.BlocksCountLo, uint16(raw.BlocksCountHi), is64)

	sb.geo = geometry{
		blockSize:       blockSize,
		inodeSize:       inodeSize,
		descSize:        descSize,
		is64Bit:         is64,
		hasMetadataCsum: raw.FeatureROCompat&roCompatMetadataCsum != 0,
		usesExtents:     raw.FeatureIncompat&incompatExtents != 0,
		hasFlexBG:       raw.FeatureIncompat&incompatFlexBG != 0,
		hasGDTCsum:      raw.FeatureROCompat&roCompatGDTCsum != 0,
		inodesPerGroup:  raw.InodesPerGroup,
		blocksPerGroup:  raw.BlocksPerGroup,
		firstDataBlock:  raw.FirstDataBlock,
	}
	if sb.geo.blocksPerGroup == 0 {
		return nil, errCorrupt("superblock", superblockOffset, "blocks_per_group is zero")
	}
	sb.geo.groupCount = uint32((blocksCount - uint64(raw.FirstDataBlock) + uint64(sb.geo.blocksPerGroup) - 1) / uint64(sb.geo.blocksPerGroup))

	if raw.ChecksumType != 0 && raw.ChecksumType != 1 {
		return nil, errUnsupported("superblock", fmt.Sprintf("checksum_type %d", raw.ChecksumType))
	}

	if sb.geo.hasMetadataCsum {
		computed := crc32cInit(data[:1020])
		stored := raw.Checksum
		if computed != stored {
			return sb, errChecksum("superblock", superblockOffset, computed, stored)
		}
	}

	return sb, nil
}

// BlockSize returns the filesystem's block size in bytes.
func (sb *Superblock) BlockSize() uint32 { return sb.geo.blockSize }

// InodesCount returns s_inodes_count.
func (sb *Superblock) InodesCount() uint32 { return sb.raw.InodesCount }

// BlocksCount returns the combined 64-bit block count.
func (sb *Superblock) BlocksCount() uint64 {
	return combineLoHi32(sb.raw.BlocksCountLo, uint16(sb.raw.BlocksCountHi), sb.geo.is64Bit)
}

// InodeSize returns the on-disk inode record size.
func (sb *Superblock) InodeSize() uint16 { return sb.geo.inodeSize }

// GroupCount returns the number of block groups in the filesystem.
func (sb *Superblock) GroupCount() uint32 { return sb.geo.groupCount }

// UUID returns the volume UUID.
func (sb *Superblock) UUID() uuid.UUID {
	id, _ := uuid.FromBytes(sb.raw.UUID[:])
	return id
}

// VolumeName returns the NUL-terminated volume label.
func (sb *Superblock) VolumeName() string {
	n := bytes.IndexByte(sb.raw.VolumeName[:], 0)
	if n < 0 {
		n = len(sb.raw.VolumeName)
	}
	return string(sb.raw.VolumeName[:n])
}

// Clean reports whether the filesystem was cleanly unmounted (s_state bit
// EXT2_VALID_FS). This is advisory only: this library never replays the
// journal, so a dirty image is still decoded, just flagged.
func (sb *Superblock) Clean() bool { return sb.raw.State&0x0001 != 0 }

// Type classifies the image as "ext2", "ext3" or "ext4" following the same
// heuristic the teacher's detector used: presence of extents or 64BIT means
// ext4, presence of a journal without those means ext3, else ext2.
func (sb *Superblock) Type() string {
	switch {
	case sb.raw.FeatureIncompat&(incompatExtents|incompat64Bit) != 0:
		return "ext4"
	case sb.raw.FeatureCompat&compatHasJournal != 0:
		return "ext3"
	default:
		return "ext2"
	}
}

func (sb *Superblock) hasIncompat(bit uint32) bool { return sb.raw.FeatureIncompat&bit != 0 }
func (sb *Superblock) hasROCompat(bit uint32) bool { return sb.raw.FeatureROCompat&bit != 0 }
func (sb *Superblock) hasCompat(bit uint32) bool    { return sb.raw.FeatureCompat&bit != 0 }
