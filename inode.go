package extfs

import (
	"bytes"
	"fmt"
	"time"

	"github.com/lunixbochs/struc"
)

// FileKind classifies an inode by the type nibble of its mode field.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindRegular
	KindDirectory
	KindSymlink
	KindCharDevice
	KindBlockDevice
	KindFIFO
	KindSocket
)

func (k FileKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindCharDevice:
		return "char device"
	case KindBlockDevice:
		return "block device"
	case KindFIFO:
		return "fifo"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}

const (
	modeTypeMask   = 0xF000
	modeFIFO       = 0x1000
	modeCharDevice = 0x2000
	modeDirectory  = 0x4000
	modeBlockDevice = 0x6000
	modeRegular    = 0x8000
	modeSymlink    = 0xA000
	modeSocket     = 0xC000
)

const (
	inodeFlagExtents = 0x00080000
)

// Inode is a fully decoded inode: base fields, the extra area when present,
// and the geometry context needed to resolve its data blocks.
type Inode struct {
	fs     *FS
	number uint32
	raw    rawInode
	extra  rawInodeExtra
	hasExtra bool
}

// rootInodeNumber is the fixed inode number of the filesystem root.
const rootInodeNumber = 2

// inodeLocation computes the byte offset of inode n's record, following
// the group/index math in the original block-group index_of routine.
func (fsys *FS) inodeLocation(n uint32) (int64, error) {
	if n == 0 {
		return 0, errOutOfRange("inode", "inode 0 does not exist")
	}
	if n > fsys.sb.raw.InodesCount {
		return 0, errOutOfRange("inode", fmt.Sprintf("inode %d exceeds inodes_count %d", n, fsys.sb.raw.InodesCount))
	}

	idx := n - 1
	groupNumber := idx / fsys.sb.geo.inodesPerGroup
	indexInGroup := idx % fsys.sb.geo.inodesPerGroup

	g, err := fsys.Group(groupNumber)
	if err != nil {
		return 0, err
	}
	if g.InodeUninit() {
		return 0, errOutOfRange("inode", fmt.Sprintf("inode %d is in an uninitialized group", n))
	}

	return int64(g.InodeTable)*int64(fsys.sb.geo.blockSize) + int64(indexInGroup)*int64(fsys.sb.geo.inodeSize), nil
}

// Inode reads and decodes inode number n.
func (fsys *FS) Inode(n uint32) (*Inode, error) {
	offset, err := fsys.inodeLocation(n)
	if err != nil {
		return nil, err
	}

	data := make([]byte, fsys.sb.geo.inodeSize)
	if _, err := fsys.r.ReadAt(data, offset); err != nil {
		return nil, errIO("inode", offset, err)
	}

	var raw rawInode
	if err := struc.Unpack(bytes.NewReader(data[:128]), &raw); err != nil {
		return nil, errCorrupt("inode", offset, err.Error())
	}

	in := &Inode{fs: fsys, number: n, raw: raw}

	if len(data) > 128+2 {
		extraIsize := leU16(data[128:130])
		in.extra.ExtraIsize = extraIsize
		if 128+int(extraIsize) <= len(data) && extraIsize >= 4 {
			end := 128 + int(extraIsize)
			if end > len(data) {
				end = len(data)
			}
			var extra rawInodeExtra
			if err := struc.Unpack(bytes.NewReader(padTo(data[128:end], len(rawInodeExtraZeros))), &extra); err == nil {
				in.extra = extra
				in.hasExtra = true
			}
		}
	}

	if err := in.verifyChecksum(data); err != nil {
		if err := fsys.checksumPolicy(err); err != nil {
			return in, err
		}
	}

	return in, nil
}

// rawInodeExtraZeros is sized to the fixed rawInodeExtra layout (32 bytes:
// 2+2+4*7) so a short trailing extra area can be zero-padded before struc
// decoding.
var rawInodeExtraZeros = make([]byte, 32)

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func (in *Inode) verifyChecksum(data []byte) error {
	if !in.fs.sb.geo.hasMetadataCsum {
		return nil
	}
	buf := zeroed(data, 0x7C, 2)
	if in.hasExtra && 128+4 <= len(data) {
		buf = zeroed(buf, 128+2, 2)
	}
	seed := in.fs.sb.checksumSeed()
	h := crc32cSeed(seed, le32(in.number))
	h = crc32cSeed(h, le32(in.raw.Generation))
	h = crc32cSeed(h, buf)

	if in.hasExtra && in.extra.ExtraIsize >= 4 {
		stored := uint32(in.raw.ChecksumLo) | (uint32(in.extra.ChecksumHi) << 16)
		if h != stored {
			return errChecksum(fmt.Sprintf("inode %d", in.number), 0, h, stored)
		}
		return nil
	}
	stored := uint32(in.raw.ChecksumLo)
	if h&0xFFFF != stored {
		return errChecksum(fmt.Sprintf("inode %d", in.number), 0, h&0xFFFF, stored)
	}
	return nil
}

// Number returns the inode's 1-based number.
func (in *Inode) Number() uint32 { return in.number }

// Mode returns the raw on-disk mode field (permission bits and type nibble).
func (in *Inode) Mode() uint16 { return in.raw.Mode }

// Kind classifies the inode by its mode's type nibble.
func (in *Inode) Kind() FileKind {
	switch in.raw.Mode & modeTypeMask {
	case modeRegular:
		return KindRegular
	case modeDirectory:
		return KindDirectory
	case modeSymlink:
		return KindSymlink
	case modeCharDevice:
		return KindCharDevice
	case modeBlockDevice:
		return KindBlockDevice
	case modeFIFO:
		return KindFIFO
	case modeSocket:
		return KindSocket
	default:
		return KindUnknown
	}
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Kind() == KindDirectory }

// UID returns the combined low/high owner id.
func (in *Inode) UID() uint32 { return combineLoHi16(in.raw.UidLo, in.raw.UidHi, true) }

// GID returns the combined low/high group id.
func (in *Inode) GID() uint32 { return combineLoHi16(in.raw.GidLo, in.raw.GidHi, true) }

// Size returns the file size in bytes, combining the low/high halves for
// regular files and directories per the on-disk convention.
func (in *Inode) Size() int64 {
	switch in.Kind() {
	case KindRegular, KindDirectory:
		return int64(combineLoHi32(in.raw.SizeLo, uint16(in.raw.SizeHi), true))
	default:
		return int64(in.raw.SizeLo)
	}
}

// Links returns the hard link count.
func (in *Inode) Links() uint16 { return in.raw.LinksCount }

// Generation returns i_generation, used as an NFS file handle component
// and as an input to the inode/extent checksum recipes.
func (in *Inode) Generation() uint32 { return in.raw.Generation }

// BlocksCount returns the 512-byte sector count charged to this inode.
func (in *Inode) BlocksCount() uint64 {
	return combineLoHi16Wide(in.raw.BlocksLo, in.raw.BlocksHi)
}

func combineLoHi16Wide(lo uint32, hi uint16) uint64 {
	return uint64(lo) | (uint64(hi) << 32)
}

// usesExtentTree reports whether i_block should be interpreted as an
// extent tree header rather than legacy indirect block pointers.
func (in *Inode) usesExtentTree() bool {
	return in.raw.Flags&inodeFlagExtents != 0
}

func decodeTime(seconds int32, extra uint32) time.Time {
	// extra packs {epoch_hi:2 bits, nsec:30 bits} per the on-disk format,
	// extending the signed 32-bit second count into a 34-bit range so
	// timestamps before 1970 and after 2038 both decode correctly.
	epochHi := int64(extra & 0x3)
	nsec := int64(extra >> 2)
	sec := int64(seconds) + epochHi*(1<<32)
	return time.Unix(sec, nsec).UTC()
}

// ATime, MTime, CTime and CrTime return the access, modify, inode-change
// and (when present) creation timestamps at whatever precision the inode's
// extra area carries.
func (in *Inode) ATime() time.Time {
	if in.hasExtra {
		return decodeTime(in.raw.Atime, in.extra.AtimeExtra)
	}
	return decodeTime(in.raw.Atime, 0)
}

func (in *Inode) MTime() time.Time {
	if in.hasExtra {
		return decodeTime(in.raw.Mtime, in.extra.MtimeExtra)
	}
	return decodeTime(in.raw.Mtime, 0)
}

func (in *Inode) CTime() time.Time {
	if in.hasExtra {
		return decodeTime(in.raw.Ctime, in.extra.CtimeExtra)
	}
	return decodeTime(in.raw.Ctime, 0)
}

// CrTime returns the creation time if the extra area carries one, and ok=false
// otherwise (pre-ext4 inodes have no creation time field at all).
func (in *Inode) CrTime() (t time.Time, ok bool) {
	if !in.hasExtra || in.extra.ExtraIsize < 24 {
		return time.Time{}, false
	}
	return decodeTime(in.extra.Crtime, in.extra.CrtimeExtra), true
}

// FileACL returns the combined external xattr block number, or 0 if none.
func (in *Inode) FileACL() uint64 {
	return combineLoHi32(in.raw.FileACLLo, in.raw.FileACLHi, true)
}

// DeviceNumbers decodes the major/minor pair for char/block device inodes,
// following the same encoding rules the kernel's old_decode_dev/new_decode_dev
// use: a short encoding lives directly in i_block[0], a wide encoding lives
// in i_block[1] with minor split across two byte ranges.
func (in *Inode) DeviceNumbers() (major, minor uint32, err error) {
	if in.Kind() != KindCharDevice && in.Kind() != KindBlockDevice {
		return 0, 0, errOutOfRange("device numbers", "inode is not a device")
	}
	short := leU32(in.raw.Block[0:4])
	if short != 0 {
		major = (short & 0xfff00) >> 8
		minor = (short & 0xff) | ((short >> 12) & 0xfff00)
		return major, minor, nil
	}
	wide := leU32(in.raw.Block[4:8])
	major = (wide & 0xfff00) >> 8
	minor = (wide & 0xff) | ((wide >> 12) & 0xfff00)
	return major, minor, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
