// Package binning provides linear and logarithmic bin assignment for
// non-negative integers, counter arrays and probability views over bins,
// and bin-indexed container mappings.
package binning

import "math/bits"

// Unbounded marks a binner without an upper bin limit.
const Unbounded = -1

// Binner assigns non-negative integers to bin indices.
type Binner interface {
	// Bin returns the bin index for num.
	Bin(num int64) int

	// Bins returns the number of bins, or Unbounded.
	Bins() int

	// Bounded reports whether the number of bins is fixed.
	Bounded() bool

	// BinLimits returns the half-open value range [first, past) covered by
	// bin. An unbounded last bin reports past as Unbounded.
	BinLimits(bin int) (first, past int64)
}

// LinearBinner assigns numbers to equal-width bins: bin = num / width.
type LinearBinner struct {
	width int64
}

// NewLinearBinner creates an unbounded linear binner. width must be
// positive.
func NewLinearBinner(width int64) LinearBinner {
	if width <= 0 {
		panic("binning: linear binner width must be positive")
	}

	return LinearBinner{width: width}
}

// Width returns the bin width.
func (b LinearBinner) Width() int64 { return b.width }

// Bin implements Binner.
func (b LinearBinner) Bin(num int64) int {
	if num < 0 {
		return 0
	}

	return int(num / b.width)
}

// Bins implements Binner.
func (b LinearBinner) Bins() int { return Unbounded }

// Bounded implements Binner.
func (b LinearBinner) Bounded() bool { return false }

// BinLimits implements Binner.
func (b LinearBinner) BinLimits(bin int) (int64, int64) {
	return int64(bin) * b.width, int64(bin+1) * b.width
}

// LogBinner assigns numbers to exponentially growing bins. Bin j covers
// numbers with 2^j <= num < 2^(j+1), offset by first and coarsened by step:
// classes first, ..., first+step-1 merge into bin 0 and so on. Numbers below
// 2^first fall into the first bin; with last set, numbers of 2^(last+1) and
// above fall into the final bin.
type LogBinner struct {
	first int
	last  int
	step  int
	bins  int
}

// NewLogBinner creates a log binner. Pass last = Unbounded for an unbounded
// binner. step must be positive.
func NewLogBinner(first, last, step int) LogBinner {
	if step <= 0 {
		panic("binning: log binner step must be positive")
	}

	bins := Unbounded
	if last != Unbounded {
		bins = (last-first)/step + 1
	}

	return LogBinner{first: first, last: last, step: step, bins: bins}
}

// Bin implements Binner.
func (b LogBinner) Bin(num int64) int {
	exp := bits.Len64(uint64(max(num, 0))) - 1
	if exp < b.first {
		exp = b.first
	}

	if b.last != Unbounded && exp > b.last {
		exp = b.last
	}

	return (exp - b.first) / b.step
}

// Bins implements Binner.
func (b LogBinner) Bins() int { return b.bins }

// Bounded implements Binner.
func (b LogBinner) Bounded() bool { return b.last != Unbounded }

// BinLimits implements Binner.
func (b LogBinner) BinLimits(bin int) (int64, int64) {
	realFirst := int64(1) << (b.first + bin*b.step)

	first := realFirst
	if bin == 0 {
		first = 0
	}

	if b.bins != Unbounded && bin == b.bins-1 {
		return first, Unbounded
	}

	return first, realFirst << b.step
}
