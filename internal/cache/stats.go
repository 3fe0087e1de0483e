package cache

import (
	"github.com/datatier/cachesim/internal/workload"
)

// FileStats aggregates per-file cache counters on top of the workload access
// counters.
type FileStats struct {
	workload.FileStats

	Hits               int64
	Misses             int64
	BytesHit           workload.BytesSize
	BytesMissed        workload.BytesSize
	BytesAdded         workload.BytesSize
	BytesRemovedDue    workload.BytesSize
	LastResidenceBegin workload.TimeStamp
	LastResidenceEnd   workload.TimeStamp
}

// TotalStats aggregates cache counters over all files.
type TotalStats struct {
	workload.TotalStats

	FilesHit     int64
	FilesMissed  int64
	BytesHit     workload.BytesSize
	BytesMissed  workload.BytesSize
	BytesAdded   workload.BytesSize
	BytesRemoved workload.BytesSize
}

// StatsCounters aggregates AccessInfos per file and in total.
//
// Reset supports warm-up runs: it clears all counters and installs a
// one-shot filter over the parts resident at reset time. The first
// subsequent access to such a part books the part's already-stored bytes as
// missed instead of hit, so warm-up data contributes no free hits. A file's
// filter entry vanishes once all marked parts were re-accessed or the file
// was evicted.
type StatsCounters struct {
	files map[workload.FileID]*FileStats
	total TotalStats

	// resident mirrors the parts currently stored per file, maintained from
	// the info stream. It seeds the warm filter on Reset.
	resident map[workload.FileID]map[workload.PartInd]workload.BytesSize

	warmFilter map[workload.FileID]map[workload.PartInd]workload.BytesSize
}

// NewStatsCounters creates empty counters.
func NewStatsCounters() *StatsCounters {
	return &StatsCounters{
		files:    make(map[workload.FileID]*FileStats),
		resident: make(map[workload.FileID]map[workload.PartInd]workload.BytesSize),
	}
}

// Total returns the aggregate counters.
func (c *StatsCounters) Total() TotalStats { return c.total }

// FileCount returns the number of distinct files counted since the last
// reset.
func (c *StatsCounters) FileCount() int { return len(c.files) }

// File returns the counters of one file, or nil.
func (c *StatsCounters) File(file workload.FileID) *FileStats { return c.files[file] }

// Files returns the per-file counters map. The map must not be mutated.
func (c *StatsCounters) Files() map[workload.FileID]*FileStats { return c.files }

// Reset clears all counters and arms the warm-up filter with the currently
// resident parts.
func (c *StatsCounters) Reset() {
	c.files = make(map[workload.FileID]*FileStats)
	c.total = TotalStats{}

	c.warmFilter = make(map[workload.FileID]map[workload.PartInd]workload.BytesSize, len(c.resident))
	for file, parts := range c.resident {
		marked := make(map[workload.PartInd]workload.BytesSize, len(parts))
		for ind, size := range parts {
			marked[ind] = size
		}

		c.warmFilter[file] = marked
	}
}

// ProcessAccessInfo folds one processed access into the counters.
func (c *StatsCounters) ProcessAccessInfo(info *AccessInfo) {
	bytesHit := info.BytesHit
	bytesMissed := info.BytesMissed
	fileHit := info.FileHit

	if adjust := c.consumeWarmFilter(info); adjust > 0 {
		bytesHit -= adjust
		bytesMissed += adjust
		fileHit = false
	}

	fs := c.fileStats(info.Access.File)

	fs.Accesses++
	c.total.Accesses++
	c.countAccessedBytes(fs, info.Access)

	fs.BytesHit += bytesHit
	fs.BytesMissed += bytesMissed
	fs.BytesAdded += info.BytesAdded
	fs.BytesRemovedDue += info.BytesRemoved

	if fileHit {
		fs.Hits++
		c.total.FilesHit++
	} else {
		fs.Misses++
		c.total.FilesMissed++
		fs.LastResidenceBegin = info.Access.AccessTS
	}

	c.total.BytesHit += bytesHit
	c.total.BytesMissed += bytesMissed
	c.total.BytesAdded += info.BytesAdded
	c.total.BytesRemoved += info.BytesRemoved

	for _, evicted := range info.EvictedFiles {
		c.fileStats(evicted).LastResidenceEnd = info.Access.AccessTS
		delete(c.resident, evicted)
		delete(c.warmFilter, evicted)
	}

	c.trackResidency(info)
}

// consumeWarmFilter returns how many of the access's hit bytes stem from
// pre-reset residency, and unmarks the touched parts.
func (c *StatsCounters) consumeWarmFilter(info *AccessInfo) workload.BytesSize {
	marked, ok := c.warmFilter[info.Access.File]
	if !ok {
		return 0
	}

	var adjust workload.BytesSize

	for _, p := range info.Access.Parts {
		warmSize, ok := marked[p.Ind]
		if !ok {
			continue
		}

		adjust += min(warmSize, p.Bytes)
		delete(marked, p.Ind)
	}

	if len(marked) == 0 {
		delete(c.warmFilter, info.Access.File)
	}

	if adjust > info.BytesHit {
		adjust = info.BytesHit
	}

	return adjust
}

func (c *StatsCounters) trackResidency(info *AccessInfo) {
	if info.BytesRequested() == 0 && info.TotalBytes == 0 {
		return
	}

	parts, ok := c.resident[info.Access.File]
	if !ok {
		parts = make(map[workload.PartInd]workload.BytesSize, len(info.Access.Parts))
		c.resident[info.Access.File] = parts
	}

	for _, p := range info.Access.Parts {
		if p.Bytes > parts[p.Ind] {
			parts[p.Ind] = p.Bytes
		}
	}
}

func (c *StatsCounters) fileStats(file workload.FileID) *FileStats {
	fs, ok := c.files[file]
	if !ok {
		fs = &FileStats{FileStats: workload.FileStats{ID: file}}
		c.files[file] = fs
	}

	return fs
}

// countAccessedBytes replicates the workload per-part counting into the
// embedded counters.
func (c *StatsCounters) countAccessedBytes(fs *FileStats, access workload.Access) {
	for _, part := range access.Parts {
		for len(fs.Parts) <= part.Ind {
			fs.Parts = append(fs.Parts, &workload.PartStats{Ind: len(fs.Parts)})
		}

		ps := fs.Parts[part.Ind]
		ps.Accesses++

		if part.Bytes > ps.UniqueBytesAccessed {
			diff := part.Bytes - ps.UniqueBytesAccessed
			ps.UniqueBytesAccessed += diff
			fs.UniqueBytesAccessed += diff
			c.total.UniqueBytesAccessed += diff
		}

		ps.TotalBytesAccessed += part.Bytes
		fs.TotalBytesAccessed += part.Bytes
		c.total.TotalBytesAccessed += part.Bytes
	}
}
