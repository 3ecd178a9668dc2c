package regvm

// defaultPageSize is the page size a new arena page is allocated with
// when the requested allocation is smaller than this (spec.md §4.3).
const defaultPageSize = 4096

// arenaPage is one bump-allocated page; used tracks how many bytes of
// buf are already handed out.
type arenaPage struct {
	buf  []byte
	used int
}

func (p *arenaPage) remaining() int { return len(p.buf) - p.used }

// alloc hands out n bytes from the page's tail, or reports failure if it
// doesn't fit.
func (p *arenaPage) alloc(n int) ([]byte, bool) {
	if p.remaining() < n {
		return nil, false
	}
	b := p.buf[p.used : p.used+n]
	clear(b) // pages are reused after Reset
	p.used += n
	return b, true
}

// Arena is a page-chained bump allocator for region=Ephemeral
// temporaries — string concatenation results and CONCAT's display
// output (spec.md §4.3). Allocation aligns to 8 bytes, tries the current
// page, then previously-allocated pages (reused after Reset), then grows
// by appending a new page.
type Arena struct {
	pages   []*arenaPage
	current int // index into pages of the page alloc tries first
}

func NewArena() *Arena {
	return &Arena{pages: []*arenaPage{{buf: make([]byte, defaultPageSize)}}}
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// Alloc returns zeroed arena storage of at least n bytes: n rounded up
// to a multiple of 8, and never less than 8.
func (a *Arena) Alloc(n int) []byte {
	n = align8(n)
	if n == 0 {
		n = 8
	}
	if b, ok := a.pages[a.current].alloc(n); ok {
		return b
	}
	// Try the chain of already-allocated pages before growing.
	for i := a.current + 1; i < len(a.pages); i++ {
		if b, ok := a.pages[i].alloc(n); ok {
			a.current = i
			return b
		}
	}
	capSize := n
	if capSize < defaultPageSize {
		capSize = defaultPageSize
	}
	page := &arenaPage{buf: make([]byte, capSize)}
	a.pages = append(a.pages, page)
	a.current = len(a.pages) - 1
	b, _ := page.alloc(n)
	return b
}

// Strdup copies s into the arena and returns the owned bytes, used by
// CONCAT/string `+` to build ephemeral results (spec.md §4.3, §4.5).
func (a *Arena) Strdup(s string) []byte {
	b := a.Alloc(len(s))
	copy(b, s)
	return b[:len(s)]
}

// Reset returns every page's used-count to zero without freeing the
// backing storage, invalidating every value previously tagged
// region=Ephemeral (spec.md §4.3). The VM only calls this from
// OpResetEphemeral, never implicitly.
func (a *Arena) Reset() {
	for _, p := range a.pages {
		p.used = 0
	}
	a.current = 0
}
