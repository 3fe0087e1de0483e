package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
)

// LandlordMode selects how a file's credit is refreshed on re-access.
type LandlordMode int

// Landlord credit modes.
const (
	// LandlordTotalSize sets the credit to the total cached size. With
	// uniform sizes this emulates LRU.
	LandlordTotalSize LandlordMode = iota

	// LandlordAccessSize raises the credit to the accessed size.
	LandlordAccessSize

	// LandlordFetchSize raises the credit to the newly fetched size.
	LandlordFetchSize

	// LandlordAddFetchSize adds the fetched size onto the credit.
	LandlordAddFetchSize

	// LandlordNoCost never raises the credit on re-access. With uniform
	// sizes this emulates FIFO.
	LandlordNoCost
)

// LandlordConfig configures the Landlord policy.
type LandlordConfig struct {
	Mode LandlordMode
}

// ParseLandlordConfig parses the key=value arguments of Landlord.
func ParseLandlordConfig(args string) (LandlordConfig, error) {
	cfg := LandlordConfig{Mode: LandlordTotalSize}

	err := params.Parse(args, params.Func("mode", func(value string) error {
		switch value {
		case "total_size":
			cfg.Mode = LandlordTotalSize
		case "access_size":
			cfg.Mode = LandlordAccessSize
		case "fetch_size":
			cfg.Mode = LandlordFetchSize
		case "add_fetch_size":
			cfg.Mode = LandlordAddFetchSize
		case "no_cost":
			cfg.Mode = LandlordNoCost
		default:
			return fmt.Errorf("landlord: unknown mode %q", value)
		}

		return nil
	}))
	if err != nil {
		return LandlordConfig{}, err
	}

	return cfg, nil
}

// landlordMeta is the per-file payload: the cached size backing the
// per-volume credit.
type landlordMeta struct {
	size workload.BytesSize
}

// Landlord evicts the file with the lowest credit per cached volume. The
// popped per-volume credit becomes the rent threshold deducted from all
// surviving files; the threshold grows monotonically over a run, so stored
// values drift upward while effective credits stay bounded.
type Landlord struct {
	mode          LandlordMode
	pq            *keyedpq.PQ[workload.FileID, *landlordMeta]
	rentThreshold float64
}

// NewLandlord creates the policy state.
func NewLandlord(cfg LandlordConfig) *Landlord {
	return &Landlord{
		mode: cfg.Mode,
		pq:   keyedpq.New[workload.FileID, *landlordMeta](false),
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *Landlord) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	it, ok := p.pq.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: landlord queue is empty", cache.ErrNoEvictionCandidate)
	}

	p.rentThreshold = it.Value()

	return []workload.FileID{it.Key()}, nil
}

// Contains implements cache.Policy.
func (p *Landlord) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy.
func (p *Landlord) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy. Credits are absolute byte amounts;
// the stored priority is credit per cached byte plus the current threshold.
func (p *Landlord) ProcessAccess(file workload.FileID, _ int, _ bool, info *cache.AccessInfo) {
	currentCredit := 0.0

	it, tracked := p.pq.Get(file)
	if tracked {
		currentCredit = (it.Value() - p.rentThreshold) * float64(it.Data.size)
	}

	totalBytes := info.TotalBytes

	credit := p.credit(info, currentCredit)

	runningVolumeCredit := p.rentThreshold
	if totalBytes > 0 {
		runningVolumeCredit += credit / float64(totalBytes)
	}

	if tracked {
		// In no_cost mode an unchanged priority must not refresh the entry's
		// tie-breaking recency, or uniform-size ties would order by access
		// recency instead of insertion order.
		if !(p.mode == LandlordNoCost && runningVolumeCredit == it.Value()) {
			p.pq.ChangeValue(it, runningVolumeCredit)
		}
	} else {
		var err error

		it, err = p.pq.Add(file, runningVolumeCredit, &landlordMeta{})
		if err != nil {
			divergence("landlord", err)
		}
	}

	it.Data.size = totalBytes
}

func (p *Landlord) credit(info *cache.AccessInfo, currentCredit float64) float64 {
	switch p.mode {
	case LandlordTotalSize:
		return float64(info.TotalBytes)
	case LandlordAccessSize:
		return max(currentCredit, float64(info.BytesRequested()))
	case LandlordFetchSize:
		return max(currentCredit, float64(info.BytesAdded))
	case LandlordAddFetchSize:
		return currentCredit + float64(info.BytesAdded)
	case LandlordNoCost:
		if currentCredit == 0 {
			return float64(info.TotalBytes)
		}

		return currentCredit
	}

	panic("landlord: unreachable mode")
}
