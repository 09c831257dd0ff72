// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xtrlog

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is the "would block" control-flow signal, an alias for
// [iox.ErrWouldBlock] for ecosystem consistency, matching
// hayabusa-cloud-lfq's convention. No operation in this package returns
// it: a non-blocking write that does not fit increments the ring buffer's
// dropped counter and LogEncoded reports it by returning false.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates a non-blocking write that
// would have blocked. Delegates to [iox.IsWouldBlock] for wrapped errors.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal, not a failure.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure returns true for nil, ErrWouldBlock, or ErrMore.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// ErrClosed is returned by Sink.Close when the sink has already been
// closed.
var ErrClosed = errors.New("xtrlog: sink is closed")
