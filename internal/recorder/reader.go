package recorder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/distributor"
	"github.com/datatier/cachesim/internal/workload"
)

// reverseChunkSize is the read granularity of backward iteration.
const reverseChunkSize = 64 * 1024

// AssignmentScanner iterates assignment records from a stream, in the style
// of bufio.Scanner.
type AssignmentScanner struct {
	r       *bufio.Reader
	current distributor.AccessAssignment
	err     error
}

// NewAssignmentScanner creates a forward scanner over r. If r is an
// LZ4-compressed stream, wrap it with lz4.NewReader first.
func NewAssignmentScanner(r io.Reader) *AssignmentScanner {
	return &AssignmentScanner{r: bufio.NewReader(r)}
}

// Scan advances to the next record. It returns false at stream end or on
// error; Err distinguishes the two.
func (s *AssignmentScanner) Scan() bool {
	if s.err != nil {
		return false
	}

	line, err := s.r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}

		return false
	}

	line = bytes.TrimRight(line, "\n")
	if len(line) == 0 {
		return s.Scan()
	}

	s.current, s.err = unmarshalAssignment(line)

	return s.err == nil
}

// Assignment returns the record read by the last successful Scan.
func (s *AssignmentScanner) Assignment() distributor.AccessAssignment { return s.current }

// Err returns the first error encountered.
func (s *AssignmentScanner) Err() error { return s.err }

// AccessInfoScanner iterates access-info records from a stream.
type AccessInfoScanner struct {
	r       *bufio.Reader
	current *cache.AccessInfo
	err     error
}

// NewAccessInfoScanner creates a forward scanner over r.
func NewAccessInfoScanner(r io.Reader) *AccessInfoScanner {
	return &AccessInfoScanner{r: bufio.NewReader(r)}
}

// Scan advances to the next record.
func (s *AccessInfoScanner) Scan() bool {
	if s.err != nil {
		return false
	}

	line, err := s.r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}

		return false
	}

	line = bytes.TrimRight(line, "\n")
	if len(line) == 0 {
		return s.Scan()
	}

	s.current, s.err = unmarshalAccessInfo(line)

	return s.err == nil
}

// AccessInfo returns the record read by the last successful Scan.
func (s *AccessInfoScanner) AccessInfo() *cache.AccessInfo { return s.current }

// Err returns the first error encountered.
func (s *AccessInfoScanner) Err() error { return s.err }

// Reader is a static view onto a recorded assignment sequence in a file. It
// supports forward and backward iteration and scoping to one cache
// processor's accesses, as required by offline policies.
//
// A predicate restricts the view to the one contiguous range of records for
// which it holds; the range is resolved to byte offsets on first use.
// Compressed traces are loaded into memory instead, since LZ4 streams do not
// support the backward scan.
type Reader struct {
	path      string
	predicate Predicate

	evaluated bool
	beginPos  int64
	endPos    int64 // exclusive; -1 for end of file
	length    int

	loaded []distributor.AccessAssignment // compressed traces only
}

// NewReader creates a view of the whole file.
func NewReader(path string) *Reader {
	return &Reader{path: path, endPos: -1}
}

// NewReaderWithPredicate creates a view restricted to the contiguous range
// for which predicate holds.
func NewReaderWithPredicate(path string, predicate Predicate) *Reader {
	return &Reader{path: path, predicate: predicate, endPos: -1}
}

// Len returns the number of assignments in the view. The first call scans
// the file.
func (r *Reader) Len() (int, error) {
	if err := r.prepare(); err != nil {
		return 0, err
	}

	return r.length, nil
}

// Assignments returns a pull source over the view, for online replay.
func (r *Reader) Assignments() (cache.AssignmentSource, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}

	if r.loaded != nil {
		return cache.NewSliceAssignmentSource(r.loaded), nil
	}

	file, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}

	if _, err := file.Seek(r.beginPos, io.SeekStart); err != nil {
		file.Close()

		return nil, err
	}

	return &fileAssignmentSource{
		file:    file,
		scanner: NewAssignmentScanner(io.LimitReader(file, r.rangeSize())),
	}, nil
}

// ScopeToCacheProcessor implements cache.AssignmentReader: the returned view
// iterates the accesses assigned to cacheProc.
//
// Iteration cannot surface IO errors through the sequence; a trace that
// turns unreadable after prepare succeeded aborts the run.
func (r *Reader) ScopeToCacheProcessor(cacheProc int) cache.AccessReader {
	return &scopedReader{reader: r, cacheProc: cacheProc, length: -1}
}

// prepare resolves the predicate range (or loads a compressed trace) once.
func (r *Reader) prepare() error {
	if r.evaluated {
		return nil
	}

	if IsCompressedPath(r.path) {
		if err := r.loadCompressed(); err != nil {
			return err
		}

		r.evaluated = true

		return nil
	}

	if err := r.evaluateRange(); err != nil {
		return err
	}

	r.evaluated = true

	return nil
}

func (r *Reader) loadCompressed() error {
	file, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := NewAssignmentScanner(lz4.NewReader(file))

	var loaded []distributor.AccessAssignment

	inRange := false

	for scanner.Scan() {
		assignment := scanner.Assignment()

		if r.predicate != nil {
			keep := r.predicate.Keep(assignment)

			if !inRange && !keep {
				continue
			}

			if inRange && !keep {
				break
			}

			inRange = true
		}

		loaded = append(loaded, assignment)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	r.loaded = loaded
	r.length = len(loaded)

	return nil
}

// evaluateRange scans the file once, resolving the predicate's one
// contiguous range to byte offsets and counting its records.
func (r *Reader) evaluateRange() error {
	file, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer file.Close()

	br := bufio.NewReader(file)

	var (
		offset  int64
		inRange bool
	)

	r.beginPos = 0
	r.endPos = -1
	r.length = 0

	for {
		line, readErr := br.ReadBytes('\n')

		if len(line) > 0 {
			record := bytes.TrimRight(line, "\n")
			if len(record) > 0 {
				if r.predicate == nil {
					r.length++
				} else {
					assignment, err := unmarshalAssignment(record)
					if err != nil {
						return err
					}

					keep := r.predicate.Keep(assignment)

					switch {
					case !inRange && keep:
						inRange = true
						r.beginPos = offset
						r.length++
					case inRange && !keep:
						r.endPos = offset

						return nil
					case inRange:
						r.length++
					}
				}
			}

			offset += int64(len(line))
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if r.predicate != nil && !inRange {
					// Predicate never held: empty view.
					r.beginPos = 0
					r.endPos = 0
				}

				return nil
			}

			return readErr
		}
	}
}

func (r *Reader) rangeSize() int64 {
	if r.endPos < 0 {
		return int64(1) << 62
	}

	return r.endPos - r.beginPos
}

type fileAssignmentSource struct {
	file    *os.File
	scanner *AssignmentScanner
	done    bool
}

func (s *fileAssignmentSource) Next() (distributor.AccessAssignment, bool, error) {
	if s.done {
		return distributor.AccessAssignment{}, false, nil
	}

	if s.scanner.Scan() {
		return s.scanner.Assignment(), true, nil
	}

	s.done = true

	err := s.scanner.Err()
	s.file.Close()

	return distributor.AccessAssignment{}, false, err
}

// scopedReader is the per-processor access view over a Reader.
type scopedReader struct {
	reader    *Reader
	cacheProc int
	length    int
}

// Len implements cache.AccessReader. The count is cached after one scan.
func (s *scopedReader) Len() int {
	if s.length >= 0 {
		return s.length
	}

	count := 0
	for range s.Forward() {
		count++
	}

	s.length = count

	return count
}

// Forward implements cache.AccessReader.
func (s *scopedReader) Forward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		if s.reader.loaded != nil {
			for _, assignment := range s.reader.loaded {
				if assignment.CacheProc == s.cacheProc && !yield(assignment.Access) {
					return
				}
			}

			return
		}

		source, err := s.reader.Assignments()
		if err != nil {
			panic(fmt.Sprintf("recorder: reopen trace %s: %v", s.reader.path, err))
		}

		for {
			assignment, ok, err := source.Next()
			if err != nil {
				panic(fmt.Sprintf("recorder: read trace %s: %v", s.reader.path, err))
			}

			if !ok {
				return
			}

			if assignment.CacheProc == s.cacheProc && !yield(assignment.Access) {
				return
			}
		}
	}
}

// Backward implements cache.AccessReader via the chunked reverse line scan.
func (s *scopedReader) Backward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		if err := s.reader.prepare(); err != nil {
			panic(fmt.Sprintf("recorder: prepare trace %s: %v", s.reader.path, err))
		}

		if s.reader.loaded != nil {
			for i := len(s.reader.loaded) - 1; i >= 0; i-- {
				assignment := s.reader.loaded[i]
				if assignment.CacheProc == s.cacheProc && !yield(assignment.Access) {
					return
				}
			}

			return
		}

		file, err := os.Open(s.reader.path)
		if err != nil {
			panic(fmt.Sprintf("recorder: reopen trace %s: %v", s.reader.path, err))
		}
		defer file.Close()

		for line := range reverseLines(file, s.reader.beginPos, s.reader.endPos) {
			assignment, err := unmarshalAssignment(line)
			if err != nil {
				panic(fmt.Sprintf("recorder: read trace %s: %v", s.reader.path, err))
			}

			if assignment.CacheProc == s.cacheProc && !yield(assignment.Access) {
				return
			}
		}
	}
}

// reverseLines yields the newline-separated records of f between beginPos
// and endPos (exclusive; -1 for end of file) in reverse order, reading
// backward in fixed-size chunks.
func reverseLines(f *os.File, beginPos, endPos int64) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		pos := endPos
		if pos < 0 {
			end, err := f.Seek(0, io.SeekEnd)
			if err != nil {
				panic(fmt.Sprintf("recorder: seek trace end: %v", err))
			}

			pos = end
		}

		var buf []byte

		exhausted := pos <= beginPos

		for {
			// Read the previous chunk.
			if !exhausted {
				chunkStart := max(beginPos, pos-reverseChunkSize)

				chunk := make([]byte, pos-chunkStart)
				if _, err := f.ReadAt(chunk, chunkStart); err != nil {
					panic(fmt.Sprintf("recorder: read trace chunk: %v", err))
				}

				buf = append(chunk, buf...)
				pos = chunkStart
				exhausted = pos <= beginPos
			}

			for {
				trimmed := bytes.TrimRight(buf, "\n")
				buf = buf[:len(trimmed)]

				nl := bytes.LastIndexByte(buf, '\n')
				if nl < 0 {
					if !exhausted {
						break // need the previous chunk
					}

					if len(buf) > 0 && !yield(buf) {
						return
					}

					return
				}

				line := buf[nl+1:]
				buf = buf[:nl+1]

				if len(line) > 0 && !yield(line) {
					return
				}
			}
		}
	}
}
