// Package queue provides bounded priority queues used for partial top-N
// selection during the semantic prefilter.
package queue

// Candidate is an entry in the queue: a corpus row and its score.
// Value-based (no pointers) for cache locality and zero allocations.
type Candidate struct {
	Row   uint32
	Score float32
}

// TopN keeps the N highest-scoring candidates seen so far.
// Internally a min-heap keyed by score: the weakest kept candidate sits at
// the root so a new candidate only needs one comparison to be rejected.
type TopN struct {
	limit int
	items []Candidate
}

// NewTopN creates a selector that retains at most limit candidates.
func NewTopN(limit int) *TopN {
	if limit < 1 {
		limit = 1
	}
	return &TopN{
		limit: limit,
		items: make([]Candidate, 0, limit),
	}
}

// Offer considers a candidate for inclusion.
// Returns true if the candidate was kept.
func (q *TopN) Offer(c Candidate) bool {
	if len(q.items) < q.limit {
		q.items = append(q.items, c)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if c.Score <= q.items[0].Score {
		return false
	}
	q.items[0] = c
	q.siftDown(0)
	return true
}

// Min returns the weakest kept candidate.
func (q *TopN) Min() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return q.items[0], true
}

// Len returns the number of kept candidates.
func (q *TopN) Len() int { return len(q.items) }

// Drain removes and returns all kept candidates ordered by descending score.
// The queue is empty afterwards.
func (q *TopN) Drain() []Candidate {
	out := make([]Candidate, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

// Rows appends the kept rows to dst in heap order (no particular ranking)
// and returns the extended slice. The queue keeps its contents.
func (q *TopN) Rows(dst []uint32) []uint32 {
	for _, it := range q.items {
		dst = append(dst, it.Row)
	}
	return dst
}

// Reset clears the queue for reuse.
func (q *TopN) Reset() {
	q.items = q.items[:0]
}

func (q *TopN) pop() Candidate {
	n := len(q.items)
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = Candidate{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root
}

func (q *TopN) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if q.items[i].Score >= q.items[p].Score {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopN) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.items[r].Score < q.items[l].Score {
			best = r
		}
		if q.items[best].Score >= q.items[i].Score {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
