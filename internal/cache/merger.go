package cache

import "container/heap"

// infoMerger merges several AccessInfo streams into one stream ordered by
// non-decreasing access timestamp. Ties break by stable insertion order into
// the merge queue.
type infoMerger struct {
	heap mergeHeap
	seq  int
}

type mergeEntry struct {
	info   *AccessInfo
	stream *InfoStream
	seq    int
}

type mergeHeap []mergeEntry

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	if h[i].info.Access.AccessTS != h[j].info.Access.AccessTS {
		return h[i].info.Access.AccessTS < h[j].info.Access.AccessTS
	}

	return h[i].seq < h[j].seq
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(mergeEntry)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]

	return entry
}

// newInfoMerger primes the merger with the head of each stream.
func newInfoMerger(streams []*InfoStream) (*infoMerger, error) {
	m := &infoMerger{}

	for _, stream := range streams {
		if err := m.pushNext(stream); err != nil {
			return nil, err
		}
	}

	heap.Init(&m.heap)

	return m, nil
}

// Next returns the next merged AccessInfo, or (nil, nil) when all streams
// are exhausted.
func (m *infoMerger) Next() (*AccessInfo, error) {
	if len(m.heap) == 0 {
		return nil, nil
	}

	top := m.heap[0]

	next, err := top.stream.Next()
	if err != nil {
		return nil, err
	}

	if next == nil {
		heap.Pop(&m.heap)
	} else {
		m.heap[0] = mergeEntry{info: next, stream: top.stream, seq: m.seq}
		m.seq++
		heap.Fix(&m.heap, 0)
	}

	return top.info, nil
}

func (m *infoMerger) pushNext(stream *InfoStream) error {
	info, err := stream.Next()
	if err != nil {
		return err
	}

	if info == nil {
		return nil
	}

	m.heap = append(m.heap, mergeEntry{info: info, stream: stream, seq: m.seq})
	m.seq++

	return nil
}
