// Package recorder reads and writes the line-delimited JSON trace formats:
// access assignments produced by the distributor and per-access info records
// produced by a replay. Files with an ".lz4" suffix are transparently
// compressed.
package recorder

import (
	"encoding/json"
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/distributor"
	"github.com/datatier/cachesim/internal/workload"
)

type accessJSON struct {
	AccessTS workload.TimeStamp `json:"access_ts"`
	File     workload.FileID    `json:"file"`
	Parts    [][2]int64         `json:"parts"`
}

type assignmentJSON struct {
	Access    accessJSON `json:"access"`
	CacheProc int        `json:"cache_proc"`
}

type accessInfoJSON struct {
	Access       accessJSON        `json:"access"`
	FileHit      bool              `json:"file_hit"`
	BytesHit     int64             `json:"bytes_hit"`
	BytesMissed  int64             `json:"bytes_missed"`
	BytesAdded   int64             `json:"bytes_added"`
	BytesRemoved int64             `json:"bytes_removed"`
	TotalBytes   int64             `json:"total_bytes"`
	EvictedFiles []workload.FileID `json:"evicted_files"`
}

func accessToJSON(access workload.Access) accessJSON {
	parts := make([][2]int64, len(access.Parts))
	for i, p := range access.Parts {
		parts[i] = [2]int64{int64(p.Ind), p.Bytes}
	}

	return accessJSON{AccessTS: access.AccessTS, File: access.File, Parts: parts}
}

func accessFromJSON(a accessJSON) workload.Access {
	parts := make([]workload.PartSpec, len(a.Parts))
	for i, p := range a.Parts {
		parts[i] = workload.PartSpec{Ind: workload.PartInd(p[0]), Bytes: p[1]}
	}

	return workload.Access{AccessTS: a.AccessTS, File: a.File, Parts: parts}
}

func marshalAssignment(assignment distributor.AccessAssignment) ([]byte, error) {
	return json.Marshal(assignmentJSON{
		Access:    accessToJSON(assignment.Access),
		CacheProc: assignment.CacheProc,
	})
}

func unmarshalAssignment(line []byte) (distributor.AccessAssignment, error) {
	var decoded assignmentJSON
	if err := json.Unmarshal(line, &decoded); err != nil {
		return distributor.AccessAssignment{}, fmt.Errorf("decode assignment record: %w", err)
	}

	return distributor.AccessAssignment{
		Access:    accessFromJSON(decoded.Access),
		CacheProc: decoded.CacheProc,
	}, nil
}

func marshalAccessInfo(info *cache.AccessInfo) ([]byte, error) {
	evicted := info.EvictedFiles
	if evicted == nil {
		evicted = []workload.FileID{}
	}

	return json.Marshal(accessInfoJSON{
		Access:       accessToJSON(info.Access),
		FileHit:      info.FileHit,
		BytesHit:     info.BytesHit,
		BytesMissed:  info.BytesMissed,
		BytesAdded:   info.BytesAdded,
		BytesRemoved: info.BytesRemoved,
		TotalBytes:   info.TotalBytes,
		EvictedFiles: evicted,
	})
}

func unmarshalAccessInfo(line []byte) (*cache.AccessInfo, error) {
	var decoded accessInfoJSON
	if err := json.Unmarshal(line, &decoded); err != nil {
		return nil, fmt.Errorf("decode access info record: %w", err)
	}

	return &cache.AccessInfo{
		Access:       accessFromJSON(decoded.Access),
		FileHit:      decoded.FileHit,
		BytesHit:     decoded.BytesHit,
		BytesMissed:  decoded.BytesMissed,
		BytesAdded:   decoded.BytesAdded,
		BytesRemoved: decoded.BytesRemoved,
		TotalBytes:   decoded.TotalBytes,
		EvictedFiles: decoded.EvictedFiles,
	}, nil
}
