package policy

import (
	"fmt"
	"log/slog"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/binning"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
	"github.com/datatier/cachesim/pkg/units"
)

// EVAWeighting selects how hits and evictions are weighted in the
// histograms.
type EVAWeighting int

// EVA weighting modes.
const (
	// EVAWeightAccesses counts each hit and eviction once.
	EVAWeightAccesses EVAWeighting = iota

	// EVAWeightBytes counts hits by hit bytes and evictions by file size,
	// and scales a file's EVA by its size.
	EVAWeightBytes
)

// Defaults of the EVA configuration.
const (
	defaultEVAAgeBinWidth         = 3 * units.Day
	defaultEVAEWMAFactor          = 0.0088
	defaultEVAComputationInterval = 10000
)

// EVAConfig configures the EVA policy.
type EVAConfig struct {
	Classifier          Classifier
	AgeBinWidth         int64
	EWMAFactor          float64
	ComputationInterval int
	Weighting           EVAWeighting
}

// ParseEVAConfig parses the key=value arguments of EVA.
func ParseEVAConfig(args string) (EVAConfig, error) {
	cfg := EVAConfig{
		Classifier:          ConstantClassifier{},
		AgeBinWidth:         defaultEVAAgeBinWidth,
		EWMAFactor:          defaultEVAEWMAFactor,
		ComputationInterval: defaultEVAComputationInterval,
	}

	err := params.Parse(args,
		params.Func("classifier", func(value string) error {
			classifier, err := ParseClassifier(value)
			if err != nil {
				return err
			}

			cfg.Classifier = classifier

			return nil
		}),
		params.Int64("age_bin_width", &cfg.AgeBinWidth),
		params.Float("ewma_factor", &cfg.EWMAFactor),
		params.Int("eva_computation_interval", &cfg.ComputationInterval),
		params.Func("weighting", func(value string) error {
			switch value {
			case "accesses":
				cfg.Weighting = EVAWeightAccesses
			case "bytes":
				cfg.Weighting = EVAWeightBytes
			default:
				return fmt.Errorf("eva: unknown weighting %q", value)
			}

			return nil
		}),
	)
	if err != nil {
		return EVAConfig{}, err
	}

	return cfg, nil
}

// evaClassKey combines the reused tag with the user classifier's class.
type evaClassKey struct {
	reused bool
	user   string
}

// evaFileMeta is the per-file payload of the EVA priority queue.
type evaFileMeta struct {
	size          workload.BytesSize
	firstAccessTS workload.TimeStamp
	lastAccessTS  workload.TimeStamp
	class         evaClassKey
	reused        bool
}

// evaClassInfo holds the per-class histograms: live counters folded into
// durable EWMA counters at every recomputation, and the derived per-age-bin
// EVA values.
type evaClassInfo struct {
	hits             *binning.Counters
	evictions        *binning.Counters
	durableHits      *binning.Counters
	durableEvictions *binning.Counters
	evas             *binning.Floats
}

// EVA evicts the file with the lowest estimated value per access. Hit and
// eviction ages are histogrammed per class; every ComputationInterval
// accesses the per-class EVA curves are recomputed from the exponentially
// decayed histograms and all priorities are refreshed.
type EVA struct {
	classifier  Classifier
	ageBinner   binning.LinearBinner
	ewmaFactor  float64
	interval    int
	weighting   EVAWeighting
	storageSize workload.BytesSize
	logger      *slog.Logger

	pq         *keyedpq.PQ[workload.FileID, *evaFileMeta]
	classInfos map[evaClassKey]*evaClassInfo

	accessesSinceComputation int
	lastComputationTS        workload.TimeStamp
	lastAgeBin               int
}

// NewEVA creates the policy state for a cache of storageSize bytes.
func NewEVA(cfg EVAConfig, storageSize workload.BytesSize, logger *slog.Logger) *EVA {
	if logger == nil {
		logger = slog.Default()
	}

	return &EVA{
		classifier:  cfg.Classifier,
		ageBinner:   binning.NewLinearBinner(cfg.AgeBinWidth),
		ewmaFactor:  cfg.EWMAFactor,
		interval:    cfg.ComputationInterval,
		weighting:   cfg.Weighting,
		storageSize: storageSize,
		logger:      logger,
		pq:          keyedpq.New[workload.FileID, *evaFileMeta](false),
		classInfos:  make(map[evaClassKey]*evaClassInfo),
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *EVA) PopEvictionCandidates(ctx cache.EvictionContext) ([]workload.FileID, error) {
	it, ok := p.pq.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: eva queue is empty", cache.ErrNoEvictionCandidate)
	}

	meta := it.Data
	p.classInfo(meta.class).evictions.Increment(ctx.TS-meta.lastAccessTS, p.evictionWeight(meta))

	return []workload.FileID{it.Key()}, nil
}

// Contains implements cache.Policy.
func (p *EVA) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy. The file leaves without touching any
// counter, as if it never entered the cache.
func (p *EVA) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy.
func (p *EVA) ProcessAccess(file workload.FileID, _ int, _ bool, info *cache.AccessInfo) {
	size := info.TotalBytes
	ts := info.Access.AccessTS

	userClass := p.classifier.Class(info.Access)

	it, tracked := p.pq.Get(file)

	var meta *evaFileMeta

	if tracked {
		meta = it.Data

		p.classInfo(meta.class).hits.Increment(ts-meta.lastAccessTS, p.hitWeight(info))

		meta.size = size
		meta.lastAccessTS = ts
		meta.class = evaClassKey{reused: true, user: userClass}
		meta.reused = true
	} else {
		meta = &evaFileMeta{
			size:          size,
			firstAccessTS: ts,
			lastAccessTS:  ts,
			class:         evaClassKey{reused: false, user: userClass},
		}
	}

	eva := p.evaOfFileAt(meta, ts)

	if tracked {
		p.pq.ChangeValue(it, eva)
	} else if _, err := p.pq.Add(file, eva, meta); err != nil {
		divergence("eva", err)
	}

	p.accessesSinceComputation++

	if p.accessesSinceComputation >= p.interval {
		p.computeEVAs(ts)
		p.setPriorities(ts)
	} else if p.ageBinner.Bin(ts) != p.lastAgeBin {
		p.setPriorities(ts)
	}
}

func (p *EVA) classInfo(class evaClassKey) *evaClassInfo {
	info, ok := p.classInfos[class]
	if !ok {
		info = &evaClassInfo{
			hits:             binning.NewCounters(p.ageBinner),
			evictions:        binning.NewCounters(p.ageBinner),
			durableHits:      binning.NewCounters(p.ageBinner),
			durableEvictions: binning.NewCounters(p.ageBinner),
			evas:             binning.NewFloats(p.ageBinner),
		}
		p.classInfos[class] = info
	}

	return info
}

func (p *EVA) evictionWeight(meta *evaFileMeta) int64 {
	if p.weighting == EVAWeightBytes {
		return meta.size
	}

	return 1
}

func (p *EVA) hitWeight(info *cache.AccessInfo) int64 {
	if p.weighting == EVAWeightBytes {
		return info.BytesHit
	}

	return 1
}

func (p *EVA) evaOfFileAt(meta *evaFileMeta, ts workload.TimeStamp) float64 {
	eva := p.classInfo(meta.class).evas.Get(ts - meta.lastAccessTS)
	if p.weighting == EVAWeightBytes {
		eva *= float64(meta.size)
	}

	return eva
}

// itemsInCache estimates how many value-bearing units occupy the cache:
// whole files scaled to the full volume under access weighting, plain bytes
// under byte weighting.
func (p *EVA) itemsInCache() float64 {
	if p.weighting == EVAWeightBytes {
		return float64(p.storageSize)
	}

	var trackedBytes workload.BytesSize

	for it := range p.pq.Items() {
		trackedBytes += it.Data.size
	}

	if trackedBytes == 0 {
		return 1
	}

	// Snapshot estimate; a mid-interval average would be smoother.
	return float64(p.pq.Len()) / float64(trackedBytes) * float64(p.storageSize)
}

// setPriorities refreshes every queue entry from the current EVA curves.
func (p *EVA) setPriorities(ts workload.TimeStamp) {
	rebuilt := keyedpq.New[workload.FileID, *evaFileMeta](false)

	for it := range p.pq.Items() {
		if _, err := rebuilt.Add(it.Key(), p.evaOfFileAt(it.Data, ts), it.Data); err != nil {
			divergence("eva", err)
		}
	}

	p.pq = rebuilt
	p.lastAgeBin = p.ageBinner.Bin(ts)
}

// computeEVAs folds the live histograms into the durable ones and derives
// the per-class EVA curves from reversed cumulative sums.
func (p *EVA) computeEVAs(ts workload.TimeStamp) {
	var totalHits, totalEvents int64

	classHitRates := make(map[evaClassKey][]float64, len(p.classInfos))

	for class, info := range p.classInfos {
		info.durableHits.UpdateEWMA(info.hits, p.ewmaFactor)
		info.durableEvictions.UpdateEWMA(info.evictions, p.ewmaFactor)
		info.hits.Reset()
		info.evictions.Reset()

		classHitRates[class] = cumulativeHitRates(
			info.durableHits.BinData(),
			info.durableEvictions.BinData(),
		)

		totalHits += info.durableHits.Total()
		totalEvents += info.durableHits.Total() + info.durableEvictions.Total()
	}

	totalHitRate := lenientDiv(float64(totalHits), float64(totalEvents))

	perAccessGain := totalHitRate / p.itemsInCache()

	timeInterval := ts - p.lastComputationTS
	if timeInterval == 0 {
		timeInterval = 1
	}

	// Rough estimate of events per age bin width.
	perBinAvgAccesses := float64(p.ageBinner.Width()) * float64(totalEvents) / float64(timeInterval)
	perBinAvgGain := perAccessGain * perBinAvgAccesses

	p.logger.Debug("eva recomputation",
		slog.Int64("ts", ts),
		slog.Int64("time_interval", timeInterval),
		slog.Int64("total_events", totalEvents),
		slog.Float64("total_hit_rate", totalHitRate),
		slog.Float64("per_bin_avg_gain", perBinAvgGain),
	)

	for _, info := range p.classInfos {
		info.evas.SetBinData(evaCurve(
			info.durableHits.BinData(),
			info.durableEvictions.BinData(),
			perBinAvgGain,
		))
	}

	// Reused-class bias: classes whose members historically get re-accessed
	// are worth more than their raw curve suggests.
	for class, info := range p.classInfos {
		reusedClass := evaClassKey{reused: true, user: class.user}

		reusedInfo, ok := p.classInfos[reusedClass]
		if !ok {
			continue
		}

		reusedRates := classHitRates[reusedClass]
		if len(reusedRates) == 0 || reusedRates[0] == 1.0 {
			continue
		}

		bias := reusedInfo.evas.GetBin(0) / (1.0 - reusedRates[0])

		rates := classHitRates[class]
		for bin := 0; bin < info.evas.Len() && bin < len(rates); bin++ {
			info.evas.SetBin(bin, info.evas.GetBin(bin)+(rates[bin]-totalHitRate)*bias)
		}
	}

	p.accessesSinceComputation = 0
	p.lastComputationTS = ts
}

// cumulativeHitRates returns, per age bin a, the rate of hits among all
// events at age a or older: sum(hits[a:]) / sum(hits[a:] + evictions[a:]).
func cumulativeHitRates(hits, evictions []int64) []float64 {
	length := max(len(hits), len(evictions))
	rates := make([]float64, length)

	var cumHits, cumEvents int64

	for bin := length - 1; bin >= 0; bin-- {
		cumHits += at(hits, bin)
		cumEvents += at(hits, bin) + at(evictions, bin)

		rates[bin] = lenientDiv(float64(cumHits), float64(cumEvents))
	}

	return rates
}

// evaCurve computes, per age bin a, the estimated value of one access at
// that age: (future hits - expected gain * future lifetimes) / future
// events, where "future" sums over bins a and older.
func evaCurve(hits, evictions []int64, perBinAvgGain float64) []float64 {
	length := max(len(hits), len(evictions))
	if length == 0 {
		return nil
	}

	evas := make([]float64, length)

	// The last bin seeds the cumulative lifetime with its own event count.
	var (
		cumLifetimes int64 = at(hits, length-1) + at(evictions, length-1)
		cumHits      int64 = at(hits, length-1)
		cumEvictions int64 = at(evictions, length-1)
	)

	evas[length-1] = lenientDiv(
		float64(cumHits)-perBinAvgGain*float64(cumLifetimes),
		float64(cumHits+cumEvictions),
	)

	for bin := length - 2; bin >= 0; bin-- {
		cumHits += at(hits, bin)
		cumEvictions += at(evictions, bin)
		cumLifetimes += cumHits + cumEvictions

		evas[bin] = lenientDiv(
			float64(cumHits)-perBinAvgGain*float64(cumLifetimes),
			float64(cumHits+cumEvictions),
		)
	}

	return evas
}

func at(bins []int64, bin int) int64 {
	if bin >= len(bins) {
		return 0
	}

	return bins[bin]
}

// lenientDiv returns zero for a zero divisor instead of failing; the EWMA
// decay can drain whole histograms to zero.
func lenientDiv(dividend, divisor float64) float64 {
	if divisor == 0 {
		return 0
	}

	return dividend / divisor
}
