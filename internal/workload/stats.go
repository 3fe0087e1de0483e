package workload

// PartStats aggregates per-part access counters.
type PartStats struct {
	Ind                 PartInd
	Accesses            int64
	TotalBytesAccessed  BytesSize
	UniqueBytesAccessed BytesSize
}

// FileStats aggregates per-file access counters.
type FileStats struct {
	ID                  FileID
	Accesses            int64
	TotalBytesAccessed  BytesSize
	UniqueBytesAccessed BytesSize
	Parts               []*PartStats
}

// TotalStats aggregates access counters over all files.
type TotalStats struct {
	Accesses            int64
	TotalBytesAccessed  BytesSize
	UniqueBytesAccessed BytesSize
}

// StatsCounters aggregates access counters by file and in total. Unique
// bytes count the maximum prefix ever seen per part.
type StatsCounters struct {
	files map[FileID]*FileStats
	total TotalStats
}

// NewStatsCounters creates empty counters.
func NewStatsCounters() *StatsCounters {
	return &StatsCounters{files: make(map[FileID]*FileStats)}
}

// Total returns the aggregate counters.
func (c *StatsCounters) Total() TotalStats { return c.total }

// FileCount returns the number of distinct files seen.
func (c *StatsCounters) FileCount() int { return len(c.files) }

// File returns the counters of one file, or nil if never seen.
func (c *StatsCounters) File(file FileID) *FileStats { return c.files[file] }

// Files returns the per-file counters map. The map must not be mutated.
func (c *StatsCounters) Files() map[FileID]*FileStats { return c.files }

// Reset clears all counters.
func (c *StatsCounters) Reset() {
	c.files = make(map[FileID]*FileStats)
	c.total = TotalStats{}
}

// ProcessAccess folds one access into the counters.
func (c *StatsCounters) ProcessAccess(access Access) {
	fs, ok := c.files[access.File]
	if !ok {
		fs = &FileStats{ID: access.File}
		c.files[access.File] = fs
	}

	fs.Accesses++
	c.total.Accesses++

	for _, part := range access.Parts {
		for len(fs.Parts) <= part.Ind {
			fs.Parts = append(fs.Parts, &PartStats{Ind: len(fs.Parts)})
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
