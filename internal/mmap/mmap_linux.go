//go:build linux

package mmap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func pageSize() int { return os.Getpagesize() }

// linuxRegion is the true double-mapped mirrored region.
type linuxRegion struct {
	base uintptr
	size uintptr // L
	buf  []byte
}

func newRegion(length int) (region, error) {
	size := uintptr(length)

	fd, err := unix.MemfdCreate("xtrlog-ring", 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: memfd_create: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("mmap: ftruncate: %w", err)
	}

	// Reserve a placeholder of 2*size so the two halves land adjacently.
	base, err := unix.Mmap(-1, 0, int(size<<1), unix.PROT_NONE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap: reserve: %w", err)
	}
	baseAddr := uintptr(unsafe.Pointer(&base[0]))

	low, err := mmapFixed(baseAddr, size, fd)
	if err != nil {
		_ = unix.Munmap(base)
		return nil, err
	}
	if low != baseAddr {
		_ = unix.Munmap(base)
		return nil, fmt.Errorf("mmap: MAP_FIXED did not honor the reservation address")
	}

	high, err := mmapFixed(baseAddr+size, size, fd)
	if err != nil {
		_ = unix.Munmap(base)
		return nil, err
	}
	if high != baseAddr+size {
		_ = unix.Munmap(base)
		return nil, fmt.Errorf("mmap: MAP_FIXED mirror did not land contiguously")
	}

	full := unsafe.Slice((*byte)(unsafe.Pointer(baseAddr)), int(size<<1))
	return &linuxRegion{base: baseAddr, size: size, buf: full}, nil
}

// mmapFixed maps fd at the exact address addr via MAP_FIXED, which
// unix.Mmap does not expose (it always passes addr=0 to the kernel). The
// raw syscall is the only way to land the backing object at a specific
// offset inside the reservation made above.
func mmapFixed(addr, size uintptr, fd int) (uintptr, error) {
	ret, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, size,
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_FIXED|unix.MAP_SHARED), uintptr(fd), 0)
	if errno != 0 {
		return 0, fmt.Errorf("mmap: MAP_FIXED: %w", errno)
	}
	return ret, nil
}

func (r *linuxRegion) bytes() []byte  { return r.buf }
func (r *linuxRegion) len() int       { return int(r.size) }
func (r *linuxRegion) mirrored() bool { return true }

func (r *linuxRegion) close() error {
	// The high half is unmapped explicitly first; the low half is then
	// released by unmapping the whole 2*size reservation. unix.Munmap only
	// accepts the exact slice unix.Mmap handed out (r.buf spans the same
	// range), so the high half goes through the raw syscall.
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, r.base+r.size, r.size, 0); errno != 0 {
		return errno
	}
	return unix.Munmap(r.buf)
}
