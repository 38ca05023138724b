// extls inspects ext2/3/4 filesystem images.
//
// Usage:
//
//	extls <image> ls [-l] [-a] [path]
//	extls <image> cat <path>
//	extls <image> stat <path>
//	extls <image> info
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-extfs/extfs"
	"github.com/go-extfs/extfs/internal/partition"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "extls: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: extls <image> <command> [options] [path]")
	}

	imagePath := args[0]
	command := args[1]
	cmdArgs := args[2:]

	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	r, err := openReader(file)
	if err != nil {
		return fmt.Errorf("locating ext partition: %w", err)
	}

	fsys, err := extfs.Open(r)
	if err != nil {
		return fmt.Errorf("opening filesystem: %w", err)
	}
	defer fsys.Close()

	switch command {
	case "ls":
		return runLs(fsys, cmdArgs, stdout)
	case "cat":
		return runCat(fsys, cmdArgs, stdout)
	case "stat":
		return runStat(fsys, cmdArgs, stdout)
	case "info":
		return runInfo(fsys, stdout)
	default:
		return fmt.Errorf("unknown command: %s (use ls, cat, stat, or info)", command)
	}
}

// openReader returns a reader for the ext filesystem: the first
// Linux-flagged partition found in an MBR/GPT table wrapping the image,
// else the first partition of any type, or the image itself when no
// partition table (or no partition) is found.
func openReader(file *os.File) (io.ReaderAt, error) {
	entries, err := partition.Entries(file)
	if err != nil {
		// No partition table: assume the image is a bare filesystem.
		return file, nil
	}
	for _, e := range entries {
		if e.LinuxNative {
			return io.NewSectionReader(file, e.Offset, e.Size), nil
		}
	}
	if len(entries) > 0 {
		return io.NewSectionReader(file, entries[0].Offset, entries[0].Size), nil
	}
	return file, nil
}
