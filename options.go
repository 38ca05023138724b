package extfs

// Options configures checksum-mismatch policy at Open time, mirroring the
// original_source's Options{Checksums: Checksums::Enabled} configuration
// concept: callers opt into strict behavior rather than the library
// silently failing closed on any imperfect image.
type Options struct {
	// StrictChecksums turns a ChecksumMismatch on any structure into a
	// fatal error at the point it is detected. Default false: mismatches
	// are reported through OnChecksumMismatch (if set) and decoding
	// continues using the decoded value.
	StrictChecksums bool

	// OnChecksumMismatch, if non-nil, is invoked for every checksum
	// mismatch encountered, in addition to the StrictChecksums policy.
	OnChecksumMismatch func(err *Error)
}

// Option configures an Open call.
type Option func(*Options)

// WithStrictChecksums enables StrictChecksums.
func WithStrictChecksums() Option {
	return func(o *Options) { o.StrictChecksums = true }
}

// WithChecksumMismatchHandler installs a callback invoked on every
// checksum mismatch encountered while decoding.
func WithChecksumMismatchHandler(fn func(err *Error)) Option {
	return func(o *Options) { o.OnChecksumMismatch = fn }
}

// applyChecksumPolicy centralizes the StrictChecksums/OnChecksumMismatch
// policy: given an error that might be a ChecksumMismatch, it reports it
// via the callback and either swallows it (returning nil, to let the
// caller keep the successfully decoded value) or promotes it to fatal.
func (o Options) applyChecksumPolicy(err error) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindChecksumMismatch {
		return err
	}
	if o.OnChecksumMismatch != nil {
		o.OnChecksumMismatch(e)
	}
	if o.StrictChecksums {
		return err
	}
	return nil
}
