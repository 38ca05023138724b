package extfs

import (
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

// FS is a decoded, read-only ext2/3/4 filesystem handle. It owns the
// reader and the cached superblock; nothing about it mutates after Open
// returns, so a *FS and every *Inode obtained from it are safe for
// concurrent use as long as the underlying reader is. A *DirIterator keeps
// its own position and is not safe for concurrent use.
type FS struct {
	r    io.ReaderAt
	sb   *Superblock
	opts Options
}

// Open decodes the superblock at the reader's fixed offset and returns a
// handle ready to resolve inodes, directories and file data.
func Open(r io.ReaderAt, opts ...Option) (*FS, error) {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}

	sb, err := ParseSuperblock(r)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindChecksumMismatch {
			if applyErr := o.applyChecksumPolicy(err); applyErr != nil {
				return nil, applyErr
			}
		} else {
			return nil, err
		}
	}

	return &FS{r: r, sb: sb, opts: o}, nil
}

// Superblock returns the filesystem's decoded superblock.
func (fsys *FS) Superblock() *Superblock { return fsys.sb }

// Close releases the underlying reader if it implements io.Closer.
func (fsys *FS) Close() error {
	if c, ok := fsys.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Root returns the root directory inode (inode #2).
func (fsys *FS) Root() (*Inode, error) {
	return fsys.Inode(rootInodeNumber)
}

func (fsys *FS) checksumPolicy(err error) error {
	return fsys.opts.applyChecksumPolicy(err)
}

// Stat is a filesystem-agnostic metadata snapshot for an inode.
type Stat struct {
	InodeNumber uint32
	Mode        uint16
	Kind        FileKind
	UID, GID    uint32
	Size        int64
	Links       uint16
	ATime       time.Time
	MTime       time.Time
	CTime       time.Time
	Generation  uint32
}

// Stat returns a metadata snapshot of the inode.
func (in *Inode) Stat() Stat {
	return Stat{
		InodeNumber: in.number,
		Mode:        in.raw.Mode,
		Kind:        in.Kind(),
		UID:         in.UID(),
		GID:         in.GID(),
		Size:        in.Size(),
		Links:       in.raw.LinksCount,
		ATime:       in.ATime(),
		MTime:       in.MTime(),
		CTime:       in.CTime(),
		Generation:  in.raw.Generation,
	}
}

// --- io/fs.FS surface --------------------------------------------------
//
// FS additionally implements io/fs.FS, io/fs.ReadDirFS and io/fs.StatFS so
// it composes directly with fs.WalkDir, fs.Glob and friends, following the
// teacher's fsys.FS embedding of the same three interfaces.

func (fsys *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	in, err := fsys.resolvePath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if in.IsDir() {
		return &openDir{fs: fsys, in: in, name: path.Base(name)}, nil
	}
	return &openFile{in: in, name: path.Base(name)}, nil
}

func (fsys *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

func (fsys *FS) resolvePath(name string) (*Inode, error) {
	if name == "." {
		return fsys.Root()
	}

	cur, err := fsys.Root()
	if err != nil {
		return nil, err
	}
	for _, part := range strings.Split(name, "/") {
		if !cur.IsDir() {
			return nil, fs.ErrNotExist
		}
		next, err := cur.lookupChild(part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (in *Inode) lookupChild(name string) (*Inode, error) {
	it, err := in.Readdir()
	if err != nil {
		return nil, err
	}
	for {
		e, err := it.Next()
		if err == io.EOF {
			return nil, fs.ErrNotExist
		}
		if err != nil {
			return nil, err
		}
		if string(e.Name) == name {
			return in.fs.Inode(e.InodeNumber)
		}
	}
}

// openFile implements fs.File for regular (and other non-directory) inodes.
type openFile struct {
	in     *Inode
	name   string
	offset int64
}

func (f *openFile) Stat() (fs.FileInfo, error) { return &fileInfo{in: f.in, name: f.name}, nil }

func (f *openFile) Read(p []byte) (int, error) {
	n, err := f.in.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *openFile) Close() error { return nil }

// openDir implements fs.File and fs.ReadDirFile for directory inodes.
type openDir struct {
	fs      *FS
	in      *Inode
	name    string
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return &fileInfo{in: d.in, name: d.name}, nil }

func (d *openDir) Read(p []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Close() error { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		it, err := d.in.Readdir()
		if err != nil {
			return nil, err
		}
		for {
			e, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			name := string(e.Name)
			if name == "." || name == ".." {
				continue
			}
			d.entries = append(d.entries, &dirEntryAdapter{fs: d.fs, entry: e})
		}
	}

	if n <= 0 {
		out := d.entries[d.offset:]
		d.offset = len(d.entries)
		return out, nil
	}
	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}
	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}
	out := d.entries[d.offset:end]
	d.offset = end
	return out, nil
}

// dirEntryAdapter implements fs.DirEntry over a decoded DirEntry.
type dirEntryAdapter struct {
	fs    *FS
	entry DirEntry
}

func (e *dirEntryAdapter) Name() string { return string(e.entry.Name) }
func (e *dirEntryAdapter) IsDir() bool  { return e.entry.FileType == dirFileTypeDir }
func (e *dirEntryAdapter) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	if e.entry.FileType == dirFileTypeSymlink {
		return fs.ModeSymlink
	}
	return 0
}
func (e *dirEntryAdapter) Info() (fs.FileInfo, error) {
	in, err := e.fs.Inode(e.entry.InodeNumber)
	if err != nil {
		return nil, err
	}
	return &fileInfo{in: in, name: string(e.entry.Name)}, nil
}

// fileInfo implements fs.FileInfo, plus an Inode() accessor mirroring the
// teacher's fsys.FileInfo extension.
type fileInfo struct {
	in   *Inode
	name string
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.in.Size() }
func (i *fileInfo) ModTime() time.Time { return i.in.MTime() }
func (i *fileInfo) IsDir() bool        { return i.in.IsDir() }
func (i *fileInfo) Sys() any           { return i.in }
func (i *fileInfo) Inode() uint64      { return uint64(i.in.Number()) }

func (i *fileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(i.in.Mode() & 0777)
	switch i.in.Kind() {
	case KindDirectory:
		mode |= fs.ModeDir
	case KindSymlink:
		mode |= fs.ModeSymlink
	case KindBlockDevice:
		mode |= fs.ModeDevice
	case KindCharDevice:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case KindFIFO:
		mode |= fs.ModeNamedPipe
	case KindSocket:
		mode |= fs.ModeSocket
	}
	return mode
}
