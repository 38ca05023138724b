package extfs

// Raw on-disk record layouts, decoded with github.com/lunixbochs/struc from
// struct tags rather than by hand-slicing byte offsets. This is the
// project's core domain dependency: every fixed-width structure in the
// filesystem goes through struc.Unpack against one of these types.

// rawSuperblock is the 1024-byte primary superblock, byte-for-byte per the
// ext4 on-disk format documentation. Reserved regions are decoded as
// padding so the checksum recipe in checksum.go can still hash the
// original bytes verbatim; the typed fields below exist for convenience
// access, not for round-tripping bit-for-bit beyond the documented fields.
type rawSuperblock struct {
	InodesCount        uint32     `struc:"uint32,little"`
	BlocksCountLo      uint32     `struc:"uint32,little"`
	RBlocksCountLo     uint32     `struc:"uint32,little"`
	FreeBlocksCountLo  uint32     `struc:"uint32,little"`
	FreeInodesCount    uint32     `struc:"uint32,little"`
	FirstDataBlock     uint32     `struc:"uint32,little"`
	LogBlockSize       uint32     `struc:"uint32,little"`
	LogClusterSize     uint32     `struc:"uint32,little"`
	BlocksPerGroup     uint32     `struc:"uint32,little"`
	ClustersPerGroup   uint32     `struc:"uint32,little"`
	InodesPerGroup     uint32     `struc:"uint32,little"`
	Mtime              uint32     `struc:"uint32,little"`
	Wtime              uint32     `struc:"uint32,little"`
	MntCount           uint16     `struc:"uint16,little"`
	MaxMntCount        int16      `struc:"int16,little"`
	Magic              uint16     `struc:"uint16,little"`
	State              uint16     `struc:"uint16,little"`
	Errors             uint16     `struc:"uint16,little"`
	MinorRevLevel      uint16     `struc:"uint16,little"`
	LastCheck          uint32     `struc:"uint32,little"`
	CheckInterval      uint32     `struc:"uint32,little"`
	CreatorOS          uint32     `struc:"uint32,little"`
	RevLevel           uint32     `struc:"uint32,little"`
	DefResuid          uint16     `struc:"uint16,little"`
	DefResgid          uint16     `struc:"uint16,little"`
	FirstIno           uint32     `struc:"uint32,little"`
	InodeSize          uint16     `struc:"uint16,little"`
	BlockGroupNr       uint16     `struc:"uint16,little"`
	FeatureCompat      uint32     `struc:"uint32,little"`
	FeatureIncompat    uint32     `struc:"uint32,little"`
	FeatureROCompat    uint32     `struc:"uint32,little"`
	UUID               [16]byte   `struc:"[16]byte"`
	VolumeName         [16]byte   `struc:"[16]byte"`
	LastMounted        [64]byte   `struc:"[64]byte"`
	AlgorithmUsageBmap uint32     `struc:"uint32,little"`
	PreallocBlocks     uint8      `struc:"uint8"`
	PreallocDirBlocks  uint8      `struc:"uint8"`
	ReservedGDTBlocks  uint16     `struc:"uint16,little"`
	JournalUUID        [16]byte   `struc:"[16]byte"`
	JournalInum        uint32     `struc:"uint32,little"`
	JournalDev         uint32     `struc:"uint32,little"`
	LastOrphan         uint32     `struc:"uint32,little"`
	HashSeed           [4]uint32  `struc:"[4]uint32,little"`
	DefHashVersion     uint8      `struc:"uint8"`
	JnlBackupType      uint8      `struc:"uint8"`
	DescSize           uint16     `struc:"uint16,little"`
	DefaultMountOpts   uint32     `struc:"uint32,little"`
	FirstMetaBG        uint32     `struc:"uint32,little"`
	MkfsTime           uint32     `struc:"uint32,little"`
	JnlBlocks          [17]uint32 `struc:"[17]uint32,little"`
	BlocksCountHi      uint32     `struc:"uint32,little"`
	RBlocksCountHi     uint32     `struc:"uint32,little"`
	FreeBlocksCountHi  uint32     `struc:"uint32,little"`
	MinExtraIsize      uint16     `struc:"uint16,little"`
	WantExtraIsize     uint16     `struc:"uint16,little"`
	Flags              uint32     `struc:"uint32,little"`
	RaidStride         uint16     `struc:"uint16,little"`
	MmpInterval        uint16     `struc:"uint16,little"`
	MmpBlock           uint64     `struc:"uint64,little"`
	RaidStripeWidth    uint32     `struc:"uint32,little"`
	LogGroupsPerFlex   uint8      `struc:"uint8"`
	ChecksumType       uint8      `struc:"uint8"`
	ReservedPad        uint16     `struc:"uint16,little"`
	KBytesWritten      uint64     `struc:"uint64,little"`
	SnapshotInum       uint32     `struc:"uint32,little"`
	SnapshotID         uint32     `struc:"uint32,little"`
	SnapshotRBlocks    uint64     `struc:"uint64,little"`
	SnapshotListInum   uint32     `struc:"uint32,little"`
	ErrorCount         uint32     `struc:"uint32,little"`
	FirstErrorTime     uint32     `struc:"uint32,little"`
	FirstErrorIno      uint32     `struc:"uint32,little"`
	FirstErrorBlock    uint64     `struc:"uint64,little"`
	FirstErrorFunc     [32]byte   `struc:"[32]byte"`
	FirstErrorLine     uint32     `struc:"uint32,little"`
	LastErrorTime      uint32     `struc:"uint32,little"`
	LastErrorIno       uint32     `struc:"uint32,little"`
	LastErrorLine      uint32     `struc:"uint32,little"`
	LastErrorBlock     uint64     `struc:"uint64,little"`
	LastErrorFunc      [32]byte   `struc:"[32]byte"`
	MountOpts          [64]byte   `struc:"[64]byte"`
	UsrQuotaInum       uint32     `struc:"uint32,little"`
	GrpQuotaInum       uint32     `struc:"uint32,little"`
	OverheadClusters   uint32     `struc:"uint32,little"`
	BackupBGs          [2]uint32  `struc:"[2]uint32,little"`
	EncryptAlgos       [4]uint8   `struc:"[4]uint8"`
	EncryptPwSalt      [16]byte   `struc:"[16]byte"`
	LpfIno             uint32     `struc:"uint32,little"`
	ProjQuotaInum      uint32     `struc:"uint32,little"`
	ChecksumSeed       uint32     `struc:"uint32,little"`
	ReservedTail       [98]uint32 `struc:"[98]uint32,little"`
	Checksum           uint32     `struc:"uint32,little"`
}

// rawGroupDesc32 is the legacy 32-byte block group descriptor.
type rawGroupDesc32 struct {
	BlockBitmapLo     uint32 `struc:"uint32,little"`
	InodeBitmapLo     uint32 `struc:"uint32,little"`
	InodeTableLo      uint32 `struc:"uint32,little"`
	FreeBlocksCountLo uint16 `struc:"uint16,little"`
	FreeInodesCountLo uint16 `struc:"uint16,little"`
	UsedDirsCountLo   uint16 `struc:"uint16,little"`
	Flags             uint16 `struc:"uint16,little"`
	ExcludeBitmapLo   uint32 `struc:"uint32,little"`
	BlockBitmapCsumLo uint16 `struc:"uint16,little"`
	InodeBitmapCsumLo uint16 `struc:"uint16,little"`
	ItableUnusedLo    uint16 `struc:"uint16,little"`
	Checksum          uint16 `struc:"uint16,little"`
}

// rawGroupDesc64 is the 64-byte descriptor used when the 64BIT incompat
// feature is set; it embeds the 32-byte layout followed by high halves.
type rawGroupDesc64 struct {
	rawGroupDesc32
	BlockBitmapHi     uint32   `struc:"uint32,little"`
	InodeBitmapHi     uint32   `struc:"uint32,little"`
	InodeTableHi      uint32   `struc:"uint32,little"`
	FreeBlocksCountHi uint16   `struc:"uint16,little"`
	FreeInodesCountHi uint16   `struc:"uint16,little"`
	UsedDirsCountHi   uint16   `struc:"uint16,little"`
	ItableUnusedHi    uint16   `struc:"uint16,little"`
	ExcludeBitmapHi   uint32   `struc:"uint32,little"`
	BlockBitmapCsumHi uint16   `struc:"uint16,little"`
	InodeBitmapCsumHi uint16   `struc:"uint16,little"`
	Reserved          [4]byte  `struc:"[4]byte"`
}

// rawInode is the 128-byte base inode record common to every revision.
// Fields beyond byte 128 (present when i_extra_isize allows) are decoded
// separately in inode.go since their presence is conditional, which struc
// tags cannot express.
type rawInode struct {
	Mode        uint16   `struc:"uint16,little"`
	UidLo       uint16   `struc:"uint16,little"`
	SizeLo      uint32   `struc:"uint32,little"`
	Atime       int32    `struc:"int32,little"`
	Ctime       int32    `struc:"int32,little"`
	Mtime       int32    `struc:"int32,little"`
	Dtime       int32    `struc:"int32,little"`
	GidLo       uint16   `struc:"uint16,little"`
	LinksCount  uint16   `struc:"uint16,little"`
	BlocksLo    uint32   `struc:"uint32,little"`
	Flags       uint32   `struc:"uint32,little"`
	Version     uint32   `struc:"uint32,little"`
	Block       [60]byte `struc:"[60]byte"`
	Generation  uint32   `struc:"uint32,little"`
	FileACLLo   uint32   `struc:"uint32,little"`
	SizeHi      uint32   `struc:"uint32,little"`
	ObsoFaddr   uint32   `struc:"uint32,little"`
	BlocksHi    uint16   `struc:"uint16,little"`
	FileACLHi   uint16   `struc:"uint16,little"`
	UidHi       uint16   `struc:"uint16,little"`
	GidHi       uint16   `struc:"uint16,little"`
	ChecksumLo  uint16   `struc:"uint16,little"`
	Reserved    uint16   `struc:"uint16,little"`
}

// rawInodeExtra is the optional trailing area past byte 128, present when
// i_extra_isize covers the relevant field.
type rawInodeExtra struct {
	ExtraIsize   uint16 `struc:"uint16,little"`
	ChecksumHi   uint16 `struc:"uint16,little"`
	CtimeExtra   uint32 `struc:"uint32,little"`
	MtimeExtra   uint32 `struc:"uint32,little"`
	AtimeExtra   uint32 `struc:"uint32,little"`
	Crtime       int32  `struc:"int32,little"`
	CrtimeExtra  uint32 `struc:"uint32,little"`
	VersionHi    uint32 `struc:"uint32,little"`
	Projid       uint32 `struc:"uint32,little"`
}

// rawExtentHeader is the 12-byte header shared by every extent tree node
// (whether stored inline in i_block or in an extension block).
type rawExtentHeader struct {
	Magic      uint16 `struc:"uint16,little"`
	Entries    uint16 `struc:"uint16,little"`
	Max        uint16 `struc:"uint16,little"`
	Depth      uint16 `struc:"uint16,little"`
	Generation uint32 `struc:"uint32,little"`
}

// rawExtentIndex is a 12-byte internal (depth > 0) node entry.
type rawExtentIndex struct {
	Block   uint32 `struc:"uint32,little"`
	LeafLo  uint32 `struc:"uint32,little"`
	LeafHi  uint16 `struc:"uint16,little"`
	Unused  uint16 `struc:"uint16,little"`
}

// rawExtentLeaf is a 12-byte leaf (depth == 0) node entry.
type rawExtentLeaf struct {
	Block    uint32 `struc:"uint32,little"`
	Len      uint16 `struc:"uint16,little"`
	StartHi  uint16 `struc:"uint16,little"`
	StartLo  uint32 `struc:"uint32,little"`
}

// rawExtentTail is the trailing 4-byte crc32c checksum appended to an
// extension block's extent array when METADATA_CSUM is enabled.
type rawExtentTail struct {
	Checksum uint32 `struc:"uint32,little"`
}

// rawXattrHeader begins an external xattr block.
type rawXattrHeader struct {
	Magic       uint32   `struc:"uint32,little"`
	RefCount    uint32   `struc:"uint32,little"`
	Blocks      uint32   `struc:"uint32,little"`
	Hash        uint32   `struc:"uint32,little"`
	Checksum    uint32   `struc:"uint32,little"`
	Reserved    [3]uint32 `struc:"[3]uint32,little"`
}

// rawXattrIbodyHeader begins the in-inode xattr area, immediately after
// the fixed+extra inode fields.
type rawXattrIbodyHeader struct {
	Magic uint32 `struc:"uint32,little"`
}

// rawXattrEntry is the fixed-size portion of one xattr entry descriptor;
// the variable-length name follows immediately in the containing buffer.
type rawXattrEntry struct {
	NameLen   uint8  `struc:"uint8"`
	NameIndex uint8  `struc:"uint8"`
	ValueOffs uint16 `struc:"uint16,little"`
	ValueBlock uint32 `struc:"uint32,little"`
	ValueSize uint32 `struc:"uint32,little"`
	Hash      uint32 `struc:"uint32,little"`
}

// rawDirEntry2 is the fixed 8-byte header of a linear directory entry
// (ext2_dir_entry_2, the file-type-carrying variant); the name follows.
type rawDirEntry2 struct {
	Inode    uint32 `struc:"uint32,little"`
	RecLen   uint16 `struc:"uint16,little"`
	NameLen  uint8  `struc:"uint8"`
	FileType uint8  `struc:"uint8"`
}

// rawDirEntryTail mirrors the last 12 bytes of a directory block's final
// slot when it is a checksum pseudo-entry (name_len == 0, file_type == 0xde).
type rawDirEntryTail struct {
	Reserved  uint32 `struc:"uint32,little"`
	RecLen    uint16 `struc:"uint16,little"`
	Zero      uint8  `struc:"uint8"`
	DotType   uint8  `struc:"uint8"`
	Checksum  uint32 `struc:"uint32,little"`
}
