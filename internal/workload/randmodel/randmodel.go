// Package randmodel generates a synthetic random workload: a fixed file
// population with sizes spread uniformly around the mean, jobs drawing a handful of
// files each, submitted at a constant interarrival time.
package randmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/xeipuuv/gojsonschema"

	"github.com/datatier/cachesim/internal/workload"
)

// ErrInvalidParams is returned when a params document fails schema
// validation.
var ErrInvalidParams = errors.New("invalid random model parameters")

// paramsSchema validates the JSON parameter document for this model.
const paramsSchema = `{
	"type": "object",
	"required": ["file_count", "mean_file_bytes", "job_count"],
	"additionalProperties": false,
	"properties": {
		"seed": {"type": "integer", "minimum": 0},
		"file_count": {"type": "integer", "minimum": 1},
		"mean_file_bytes": {"type": "integer", "minimum": 1},
		"parts_per_file": {"type": "integer", "minimum": 1},
		"job_count": {"type": "integer", "minimum": 1},
		"accesses_per_job": {"type": "integer", "minimum": 1},
		"interarrival_seconds": {"type": "integer", "minimum": 0},
		"dataset_count": {"type": "integer", "minimum": 1}
	}
}`

// Params configures the random workload model.
type Params struct {
	Seed                uint64 `json:"seed"`
	FileCount           int    `json:"file_count"`
	MeanFileBytes       int64  `json:"mean_file_bytes"`
	PartsPerFile        int    `json:"parts_per_file"`
	JobCount            int    `json:"job_count"`
	AccessesPerJob      int    `json:"accesses_per_job"`
	InterarrivalSeconds int64  `json:"interarrival_seconds"`
	DatasetCount        int    `json:"dataset_count"`
}

// LoadParams validates and decodes a JSON parameter document.
func LoadParams(doc []byte) (Params, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(paramsSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return Params{}, fmt.Errorf("validate params: %w", err)
	}

	if !result.Valid() {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParams, result.Errors())
	}

	params := Params{
		PartsPerFile:        1,
		AccessesPerJob:      4,
		InterarrivalSeconds: 60,
		DatasetCount:        4,
	}

	if err := json.Unmarshal(doc, &params); err != nil {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}

	return params, nil
}

type file struct {
	id    workload.FileID
	parts []workload.PartSpec
}

// Generator produces jobs according to Params. It is deterministic for a
// given seed.
type Generator struct {
	params Params
	rng    *rand.Rand
	files  []file
	nextTS workload.TimeStamp
	emit   int
}

// NewGenerator builds the file population and prepares job generation.
func NewGenerator(params Params) *Generator {
	if params.PartsPerFile < 1 {
		params.PartsPerFile = 1
	}

	if params.DatasetCount < 1 {
		params.DatasetCount = 1
	}

	if params.AccessesPerJob < 1 {
		params.AccessesPerJob = 1
	}

	rng := rand.New(rand.NewPCG(params.Seed, params.Seed+1))

	files := make([]file, params.FileCount)
	for i := range files {
		files[i] = file{
			id:    fmt.Sprintf("/pool%02d/dir%03d/file%06d", i%params.DatasetCount, i%997, i),
			parts: makeParts(rng, params),
		}
	}

	return &Generator{params: params, rng: rng, files: files}
}

// makeParts draws per-part sizes so the file's expected total matches
// MeanFileBytes, spread by a factor of up to 2 either way.
func makeParts(rng *rand.Rand, params Params) []workload.PartSpec {
	parts := make([]workload.PartSpec, params.PartsPerFile)

	perPart := params.MeanFileBytes / int64(params.PartsPerFile)
	if perPart < 1 {
		perPart = 1
	}

	for i := range parts {
		spread := 0.5 + rng.Float64()
		parts[i] = workload.PartSpec{Ind: i, Bytes: max(int64(float64(perPart)*spread), 1)}
	}

	return parts
}

// Next returns the next job, or false after JobCount jobs.
func (g *Generator) Next() (workload.Job, bool) {
	if g.emit >= g.params.JobCount {
		return workload.Job{}, false
	}

	g.emit++

	schemes := make([]workload.AccessScheme, g.params.AccessesPerJob)
	for i := range schemes {
		f := g.files[g.rng.IntN(len(g.files))]
		schemes[i] = workload.AccessScheme{File: f.id, Parts: readParts(g.rng, f.parts)}
	}

	job := workload.Job{SubmitTS: g.nextTS, AccessSchemes: schemes}
	g.nextTS += g.params.InterarrivalSeconds

	return job, true
}

// readParts draws the accessed fraction of a file: always part prefixes, at
// least one byte, at most the full part.
func readParts(rng *rand.Rand, parts []workload.PartSpec) []workload.PartSpec {
	out := make([]workload.PartSpec, len(parts))
	for i, p := range parts {
		frac := 0.25 + 0.75*rng.Float64()
		out[i] = workload.PartSpec{Ind: p.Ind, Bytes: max(int64(float64(p.Bytes)*frac), 1)}
	}

	return out
}
