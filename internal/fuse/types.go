package fuse

// Entry is one manifest-derived file exposed through the mount: a name plus
// the list of byte ranges it occupies in the volume image.
type Entry struct {
	Name string
	Size uint64
	Runs []Run
}

// Run is a single contiguous extent of an entry's data in the volume image.
type Run struct {
	LogicalOffset uint64
	ImageOffset   uint64
	Length        uint64
}
