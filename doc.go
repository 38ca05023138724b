// Package extfs implements read-only decoding of ext2, ext3 and ext4
// filesystem images. It parses the on-disk superblock, block group
// descriptors, inodes, extent trees, directories and extended attributes
// directly from an io.ReaderAt, without mounting the image or requiring
// any kernel support.
//
// The package never writes to the underlying reader. Journals are not
// replayed, encrypted inodes are surfaced as opaque blobs, and images
// whose incompat feature set falls outside SupportedIncompat are refused
// with an UnsupportedFeature error rather than decoded speculatively.
package extfs
