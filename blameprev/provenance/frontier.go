package provenance

import (
	"container/heap"
	"context"
)

// node is a line tracked at some revision, content identical to the line being traced.
type node struct {
	file FileLocator
	line int
	rank int
	seq  int
}

func (n node) cursor() LineCursor {
	return LineCursor{File: n.file, Line: n.line}
}

type nodeKey struct {
	rev  Revision
	path string
	line int
}

func (n node) key() nodeKey {
	return nodeKey{n.file.Revision, n.file.Path, n.line}
}

// frontier pops nodes newest first. Without a ranker rank equals discovery order.
type frontier struct {
	ranker  TopoRanker
	nodes   nodeHeap
	seen    map[nodeKey]bool
	counter int
}

func newFrontier(ranker TopoRanker) *frontier {
	return &frontier{ranker: ranker, seen: map[nodeKey]bool{}}
}

// push adds n unless the same revision, path and line was already queued.
func (s *frontier) push(ctx context.Context, n node) error {
	if s.seen[n.key()] {
		return nil
	}
	s.seen[n.key()] = true
	s.counter++
	n.seq = s.counter
	n.rank = s.counter
	if s.ranker != nil {
		r, err := s.ranker.TopoRank(ctx, n.file.Revision)
		if err != nil {
			return err
		}
		n.rank = r
	}
	heap.Push(&s.nodes, n)
	return nil
}

func (s *frontier) pop() node {
	return heap.Pop(&s.nodes).(node)
}

func (s *frontier) Len() int {
	return len(s.nodes)
}

type nodeHeap []node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x interface{}) {
	*h = append(*h, x.(node))
}

func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
