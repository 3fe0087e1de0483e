// Package workload defines the access model shared by the generator,
// distributor and cache stages: files are identified by opaque IDs and read
// as prefixes of numbered parts.
package workload

import "slices"

// FileID identifies a file. IDs compare byte-wise; path structure is only
// interpreted by classifiers.
type FileID = string

// PartInd indexes a part of a file.
type PartInd = int

// BytesSize counts bytes.
type BytesSize = int64

// TimeStamp is a point in simulated time, in seconds.
type TimeStamp = int64

// PartSpec describes the first Bytes bytes of part Ind of a file.
type PartSpec struct {
	Ind   PartInd
	Bytes BytesSize
}

// AccessScheme is the file-and-parts shape of an access, before it is given
// a time.
type AccessScheme struct {
	File  FileID
	Parts []PartSpec
}

// Access is a single read request: at AccessTS, the named part prefixes of
// File were read.
type Access struct {
	AccessTS TimeStamp
	File     FileID
	Parts    []PartSpec
}

// RequestedBytes returns the total byte count of the access.
func (a Access) RequestedBytes() BytesSize {
	var total BytesSize
	for _, p := range a.Parts {
		total += p.Bytes
	}

	return total
}

// CanonicalParts returns the parts sorted by part index, merging duplicate
// indices by element-wise maximum.
func CanonicalParts(parts []PartSpec) []PartSpec {
	out := slices.Clone(parts)
	slices.SortFunc(out, func(a, b PartSpec) int {
		switch {
		case a.Ind < b.Ind:
			return -1
		case a.Ind > b.Ind:
			return 1
		default:
			return 0
		}
	})

	dedup := out[:0]

	for _, p := range out {
		if len(dedup) > 0 && dedup[len(dedup)-1].Ind == p.Ind {
			if p.Bytes > dedup[len(dedup)-1].Bytes {
				dedup[len(dedup)-1].Bytes = p.Bytes
			}

			continue
		}

		dedup = append(dedup, p)
	}

	return dedup
}

// Job is a batch of access schemes submitted together.
type Job struct {
	SubmitTS      TimeStamp
	AccessSchemes []AccessScheme
}
