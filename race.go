// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package xtrlog

// RaceEnabled is true when the race detector is active. Nothing in this
// package branches on it; it is exported for callers and tests that need
// to relax timing assumptions, since race-detector instrumentation slows
// the spin-wait loops enough to change observed interleavings.
const RaceEnabled = true
