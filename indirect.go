package extfs

// Legacy indirect-block resolution: 12 direct pointers, then single,
// double and triple indirect pointers, exactly as ext2 always worked and
// as ext3/4 still work when the EXTENTS inode flag is absent.

const numDirectBlocks = 12

func (in *Inode) pointersPerBlock() uint32 { return in.fs.sb.geo.blockSize / 4 }

// lookupIndirect resolves logical to a physical block number by walking
// the legacy i_block pointer scheme.
func (in *Inode) lookupIndirect(logical uint32) (mapping, error) {
	ppb := in.pointersPerBlock()
	orig := logical

	if logical < numDirectBlocks {
		ptr := leU32(in.raw.Block[logical*4 : logical*4+4])
		return in.indirectResult(orig, ptr), nil
	}
	logical -= numDirectBlocks

	single := ppb
	if logical < single {
		ptr, err := in.readIndirectPointer(leU32(in.raw.Block[48:52]), logical)
		if err != nil {
			return mapping{}, err
		}
		return in.indirectResult(orig, ptr), nil
	}
	logical -= single

	double := ppb * ppb
	if logical < double {
		outer := logical / ppb
		inner := logical % ppb
		outerBlock, err := in.readIndirectPointer(leU32(in.raw.Block[52:56]), outer)
		if err != nil {
			return mapping{}, err
		}
		ptr, err := in.readIndirectPointer(outerBlock, inner)
		if err != nil {
			return mapping{}, err
		}
		return in.indirectResult(orig, ptr), nil
	}
	logical -= double

	triple := ppb * ppb * ppb
	if logical < triple {
		outer := logical / (ppb * ppb)
		rem := logical % (ppb * ppb)
		mid := rem / ppb
		inner := rem % ppb

		l1, err := in.readIndirectPointer(leU32(in.raw.Block[56:60]), outer)
		if err != nil {
			return mapping{}, err
		}
		l2, err := in.readIndirectPointer(l1, mid)
		if err != nil {
			return mapping{}, err
		}
		ptr, err := in.readIndirectPointer(l2, inner)
		if err != nil {
			return mapping{}, err
		}
		return in.indirectResult(orig, ptr), nil
	}

	return mapping{}, errOutOfRange("block map", "logical block beyond triple indirect range")
}

func (in *Inode) indirectResult(logical uint32, ptr uint32) mapping {
	if ptr == 0 {
		return mapping{Logical: logical, Length: 1, Hole: true}
	}
	return mapping{Logical: logical, Length: 1, Physical: uint64(ptr), Initialized: true}
}

// readIndirectPointer reads the ptr-th uint32 pointer out of the indirect
// block located at blockNum. A zero blockNum (an absent indirect level)
// yields a zero pointer, which callers treat as a hole.
func (in *Inode) readIndirectPointer(blockNum uint32, ptr uint32) (uint32, error) {
	if blockNum == 0 {
		return 0, nil
	}
	blockSize := in.fs.sb.geo.blockSize
	data := make([]byte, 4)
	off := int64(blockNum)*int64(blockSize) + int64(ptr)*4
	if _, err := in.fs.r.ReadAt(data, off); err != nil {
		return 0, errIO("indirect block", off, err)
	}
	return leU32(data), nil
}
