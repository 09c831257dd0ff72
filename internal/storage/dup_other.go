//go:build !unix

package storage

import "os"

// dupFile cannot duplicate the underlying descriptor on this platform;
// it wraps the same one instead. Closing the returned File therefore also
// closes the caller's handle — a documented narrowing versus the unix
// build, acceptable since NewFileHandle is a convenience path and NewFile
// (which opens its own descriptor outright) is unaffected.
func dupFile(f *os.File) (*os.File, error) {
	return f, nil
}
