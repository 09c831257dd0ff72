// Package mmap provides a mirrored virtual-memory region: a range of length
// 2*L backed by a single physical region of length L, mapped twice
// back-to-back, so byte i and byte i+L alias the same storage for all
// i in [0, L).
//
// Grounded on the double-mmap MAP_FIXED trick used by diskring's Ring
// (mmap a PROT_NONE reservation of 2*size, then MAP_FIXED the backing
// object over each half), adapted from a file-backed ring to an
// anonymous memfd-backed one.
package mmap

import "errors"

// ErrInvalidSize reports that length was not a power-of-two multiple of the
// system page size.
var ErrInvalidSize = errors.New("mmap: length must be a power-of-two multiple of the page size")

// Region is a mirrored virtual-memory mapping of length 2*Len, backed by a
// single physical region of length Len.
type Region struct {
	impl region
}

// New creates a mirrored region of length 2*length. length must be a
// power-of-two multiple of the system page size.
func New(length int) (*Region, error) {
	if !validSize(length) {
		return nil, ErrInvalidSize
	}
	impl, err := newRegion(length)
	if err != nil {
		return nil, err
	}
	return &Region{impl: impl}, nil
}

// Bytes returns the full 2*Len byte slice backing the mirrored region.
func (r *Region) Bytes() []byte { return r.impl.bytes() }

// Len returns the physical region length L (half of len(Bytes())).
func (r *Region) Len() int { return r.impl.len() }

// Mirrored reports whether the region is a true double mapping (false on
// platforms where New fell back to a single, non-aliased buffer).
func (r *Region) Mirrored() bool { return r.impl.mirrored() }

// Close unmaps the region.
func (r *Region) Close() error { return r.impl.close() }

// PageSize returns the system's memory page size: the unit New's length
// argument must be a power-of-two multiple of.
func PageSize() int { return pageSize() }

func validSize(length int) bool {
	if length <= 0 {
		return false
	}
	if length&(length-1) != 0 {
		return false
	}
	ps := pageSize()
	return length%ps == 0
}

type region interface {
	bytes() []byte
	len() int
	mirrored() bool
	close() error
}
