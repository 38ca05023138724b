package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/go-extfs/extfs"
)

func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

func runLs(fsys *extfs.FS, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := flags.Bool("l", false, "use long listing format")
	all := flags.Bool("a", false, "show entries starting with .")
	if err := flags.Parse(args); err != nil {
		return err
	}

	p := "."
	if flags.NArg() > 0 {
		p = flags.Arg(0)
	}
	p = normalizePath(p)

	info, err := fs.Stat(fsys, p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return printLong(info, out, *long)
	}

	entries, err := fs.ReadDir(fsys, p)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !*all && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if *long {
			ei, err := e.Info()
			if err != nil {
				fmt.Fprintf(out, "%12s %s\n", "?", e.Name())
				continue
			}
			if err := printLong(ei, out, true); err != nil {
				return err
			}
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		fmt.Fprintln(out, name)
	}
	return nil
}

func printLong(info fs.FileInfo, out io.Writer, long bool) error {
	if !long {
		fmt.Fprintln(out, info.Name())
		return nil
	}
	inode := ""
	if fi, ok := info.(interface{ Inode() uint64 }); ok {
		inode = fmt.Sprintf("%8d ", fi.Inode())
	}
	fmt.Fprintf(out, "%s%s %12d %s %s\n",
		inode, info.Mode(), info.Size(), info.ModTime().Format("Jan _2 15:04"), info.Name())
	return nil
}

func runCat(fsys *extfs.FS, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("cat requires a path argument")
	}
	p := normalizePath(args[0])

	info, err := fs.Stat(fsys, p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", p)
	}

	file, err := fsys.Open(p)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(out, file)
	return err
}

func runStat(fsys *extfs.FS, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("stat requires a path argument")
	}
	p := normalizePath(args[0])

	info, err := fs.Stat(fsys, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  File: %s\n", info.Name())
	fmt.Fprintf(out, "  Size: %d\n", info.Size())
	fmt.Fprintf(out, "  Mode: %s\n", info.Mode())
	fmt.Fprintf(out, "ModTime: %s\n", info.ModTime())
	if fi, ok := info.(interface{ Inode() uint64 }); ok {
		fmt.Fprintf(out, " Inode: %d\n", fi.Inode())
	}

	if in, ok := info.Sys().(*extfs.Inode); ok {
		xattrs, err := in.Xattrs()
		if err == nil && len(xattrs) > 0 {
			fmt.Fprintf(out, "Xattrs: ")
			names := make([]string, len(xattrs))
			for i, x := range xattrs {
				names[i] = x.Name
			}
			fmt.Fprintln(out, strings.Join(names, ", "))
		}
	}

	return nil
}

func runInfo(fsys *extfs.FS, out io.Writer) error {
	sb := fsys.Superblock()
	fmt.Fprintf(out, "Filesystem type: %s\n", sb.Type())
	fmt.Fprintf(out, "Volume name:     %q\n", sb.VolumeName())
	fmt.Fprintf(out, "UUID:            %s\n", sb.UUID())
	fmt.Fprintf(out, "Block size:      %d\n", sb.BlockSize())
	fmt.Fprintf(out, "Inode size:      %d\n", sb.InodeSize())
	fmt.Fprintf(out, "Inodes count:    %d\n", sb.InodesCount())
	fmt.Fprintf(out, "Blocks count:    %d\n", sb.BlocksCount())
	fmt.Fprintf(out, "Group count:     %d\n", sb.GroupCount())
	fmt.Fprintf(out, "Clean:           %v\n", sb.Clean())
	return nil
}
