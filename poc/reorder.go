// Package poc implements the POC reorder buffer: it turns decoded
// picture-order-counts into 0-based output indices so AVC/HEVC parsers
// can derive CTS offsets ahead of a picture's final position being
// knowable from decoding order alone.
package poc

const pageSize = 1024

// NotReady is returned by ReorderNum until the buffer has resolved at
// least capacity decoding-order entries — an empirical ref_au_max+1
// readiness heuristic.
const NotReady = -1 << 30

type pair struct {
	doc int
	poc int32
}

// Buffer is a fixed-capacity ring of (doc, poc) pairs plus a paged
// doc->outputIndex table. The paged table grows by appending 1024-entry
// pages so resolved answers never move in memory once written — unlike
// a single growable slice that reallocates and copies on every doubling.
type Buffer struct {
	capacity int
	ring     []pair
	pages    [][]int
	resolved int // count of doc entries with a known output index
	nextOut  int
	minOut   int
}

// NewBuffer creates a buffer with the given capacity, normally
// num_reorder_frames+1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity, minOut: NotReady}
}

func (b *Buffer) pageFor(doc int) []int {
	pageIdx := doc / pageSize
	for len(b.pages) <= pageIdx {
		page := make([]int, pageSize)
		for i := range page {
			page[i] = NotReady
		}
		b.pages = append(b.pages, page)
	}
	return b.pages[pageIdx]
}

func (b *Buffer) setOutputIndex(doc, idx int) {
	page := b.pageFor(doc)
	page[doc%pageSize] = idx
	b.resolved++
}

func (b *Buffer) outputIndex(doc int) int {
	if doc/pageSize >= len(b.pages) {
		return NotReady
	}
	return b.pages[doc/pageSize][doc%pageSize]
}

// Add pushes the picture decoded at doc with the given poc. An IDR
// flushes any pending entries first. When the ring is full, the
// minimum-POC pending pair is popped and assigned the next output index.
func (b *Buffer) Add(doc int, poc int32, isIDR bool) {
	if isIDR {
		b.Flush()
	}
	b.ring = append(b.ring, pair{doc: doc, poc: poc})
	if len(b.ring) > b.capacity {
		b.popMin()
	}
}

func (b *Buffer) popMin() {
	if len(b.ring) == 0 {
		return
	}
	minIdx := 0
	for i, p := range b.ring {
		if p.poc < b.ring[minIdx].poc {
			minIdx = i
		}
	}
	popped := b.ring[minIdx]
	b.ring = append(b.ring[:minIdx], b.ring[minIdx+1:]...)
	b.setOutputIndex(popped.doc, b.nextOut)
	if b.minOut == NotReady {
		b.minOut = b.nextOut
	}
	b.nextOut++
}

// Flush drains the buffer in ascending-POC order, resolving every
// pending entry's output index. Called once at AVC/HEVC sequence end, or
// implicitly on the next IDR.
func (b *Buffer) Flush() {
	for len(b.ring) > 0 {
		b.popMin()
	}
}

// ReorderNum returns outputIndex(doc) - doc, or NotReady until the
// buffer has resolved at least `capacity` decoding-order entries — an
// explicitly empirical readiness criterion: callers must retry rather
// than receive a conjectured alternate policy.
func (b *Buffer) ReorderNum(doc int) int {
	if b.resolved < b.capacity {
		return NotReady
	}
	idx := b.outputIndex(doc)
	if idx == NotReady {
		return NotReady
	}
	return idx - doc
}

// MinCTS returns the output index assigned to the first AU the buffer
// resolved (the smallest-POC pending AU at that moment; later AUs do not
// change it), or NotReady if nothing has been resolved yet.
func (b *Buffer) MinCTS() int { return b.minOut }
