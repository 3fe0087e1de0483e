package binning

// Counters is an integer counter per bin. Unbounded binners grow the backing
// array on demand; bins never written count as zero.
type Counters struct {
	binner Binner
	bins   []int64
	total  int64
}

// NewCounters creates zeroed counters over binner.
func NewCounters(binner Binner) *Counters {
	c := &Counters{binner: binner}
	c.Reset()

	return c
}

// Binner returns the bin assignment scheme.
func (c *Counters) Binner() Binner { return c.binner }

// Total returns the sum over all bins.
func (c *Counters) Total() int64 { return c.total }

// BinData exposes the backing per-bin array. The slice must not be mutated.
func (c *Counters) BinData() []int64 { return c.bins }

// Get returns the count of the bin containing num.
func (c *Counters) Get(num int64) int64 {
	bin := c.binner.Bin(num)
	if bin >= len(c.bins) {
		return 0
	}

	return c.bins[bin]
}

// Increment adds incr to the bin containing num.
func (c *Counters) Increment(num, incr int64) {
	bin := c.binner.Bin(num)
	c.grow(bin)
	c.bins[bin] += incr
	c.total += incr
}

// Set assigns the count of the bin containing num.
func (c *Counters) Set(num, val int64) {
	bin := c.binner.Bin(num)
	c.grow(bin)
	c.total += val - c.bins[bin]
	c.bins[bin] = val
}

// Reset zeroes all bins.
func (c *Counters) Reset() {
	if c.binner.Bounded() {
		c.bins = make([]int64, c.binner.Bins())
	} else {
		c.bins = nil
	}

	c.total = 0
}

// UpdateEWMA folds live counters into c bin-wise using an exponentially
// weighted moving average: bin = factor*live + (1-factor)*bin, truncated to
// integers.
func (c *Counters) UpdateEWMA(live *Counters, factor float64) {
	c.grow(len(live.bins) - 1)

	total := int64(0)

	for i := range c.bins {
		var incoming int64
		if i < len(live.bins) {
			incoming = live.bins[i]
		}

		val := int64(factor*float64(incoming) + (1-factor)*float64(c.bins[i]))
		c.bins[i] = val
		total += val
	}

	c.total = total
}

func (c *Counters) grow(bin int) {
	if bin < len(c.bins) {
		return
	}

	if c.binner.Bounded() {
		panic("binning: bin index out of range for bounded binner")
	}

	grown := make([]int64, bin+1)
	copy(grown, c.bins)
	c.bins = grown
}

// Floats is a float value per bin, used for derived per-bin statistics such
// as probabilities or economic values.
type Floats struct {
	binner Binner
	bins   []float64
}

// NewFloats creates zeroed float bins over binner.
func NewFloats(binner Binner) *Floats {
	f := &Floats{binner: binner}

	if binner.Bounded() {
		f.bins = make([]float64, binner.Bins())
	}

	return f
}

// Binner returns the bin assignment scheme.
func (f *Floats) Binner() Binner { return f.binner }

// Len returns the number of materialized bins.
func (f *Floats) Len() int { return len(f.bins) }

// Get returns the value of the bin containing num; zero for bins never set.
func (f *Floats) Get(num int64) float64 {
	bin := f.binner.Bin(num)
	if bin >= len(f.bins) {
		return 0
	}

	return f.bins[bin]
}

// GetBin returns the value of a bin by index.
func (f *Floats) GetBin(bin int) float64 {
	if bin >= len(f.bins) {
		return 0
	}

	return f.bins[bin]
}

// SetBin assigns the value of a bin by index.
func (f *Floats) SetBin(bin int, val float64) {
	if bin >= len(f.bins) {
		if f.binner.Bounded() {
			panic("binning: bin index out of range for bounded binner")
		}

		grown := make([]float64, bin+1)
		copy(grown, f.bins)
		f.bins = grown
	}

	f.bins[bin] = val
}

// SetBinData replaces all materialized bins.
func (f *Floats) SetBinData(bins []float64) {
	f.bins = bins
}

// Probabilities returns the normalized bin distribution of counters. A zero
// total yields all-zero probabilities.
func Probabilities(counters *Counters) *Floats {
	f := NewFloats(counters.Binner())

	total := counters.Total()
	if total == 0 {
		return f
	}

	bins := make([]float64, len(counters.BinData()))
	for i, count := range counters.BinData() {
		bins[i] = float64(count) / float64(total)
	}

	f.SetBinData(bins)

	return f
}
