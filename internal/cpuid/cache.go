package cpuid

// Key identifies one CPUID query.
type Key struct {
	Leaf    uint32
	Subleaf uint32
}

// Cache memoizes query results for the lifetime of one detection pass.
// The first Get for a key issues the query; later calls return the
// stored result. A Cache is not safe for concurrent use and must not be
// shared between passes: a new pass gets a new Cache so it observes the
// processor as it is at that moment.
type Cache struct {
	q       Querier
	results map[Key]Result

	maxLeaf    uint32
	maxExtLeaf uint32
}

// NewCache returns an empty cache over q and reads the two
// maximum-leaf values, which every later support check depends on.
func NewCache(q Querier) *Cache {
	c := &Cache{
		q:       q,
		results: make(map[Key]Result),
	}
	c.maxLeaf = c.Get(0, 0).EAX
	c.maxExtLeaf = normalizeExtended(c.Get(ExtendedBase, 0).EAX)
	return c
}

// Get returns the memoized result for (leaf, subleaf), querying on the
// first request. It does not check leaf support; see Lookup.
func (c *Cache) Get(leaf, subleaf uint32) Result {
	k := Key{Leaf: leaf, Subleaf: subleaf}
	if r, ok := c.results[k]; ok {
		return r
	}
	r := c.q.Query(leaf, subleaf)
	c.results[k] = r
	return r
}

// Lookup returns the result for (leaf, subleaf) when leaf is within the
// supported range of its leaf space and, for leaves that publish their
// highest sub-leaf in sub-leaf 0 EAX, subleaf is within that bound.
// Anything else returns a zero Result and false.
func (c *Cache) Lookup(leaf, subleaf uint32) (Result, bool) {
	if !c.Supported(leaf) {
		return Result{}, false
	}
	if subleaf > 0 && CountsSubleaves(leaf) && subleaf > c.Get(leaf, 0).EAX {
		return Result{}, false
	}
	return c.Get(leaf, subleaf), true
}

// Supported reports whether leaf is at or below the maximum of its
// leaf space.
func (c *Cache) Supported(leaf uint32) bool {
	if IsExtended(leaf) {
		return c.maxExtLeaf != 0 && leaf <= c.maxExtLeaf
	}
	return leaf <= c.maxLeaf
}

// MaxLeaf returns the highest supported standard leaf.
func (c *Cache) MaxLeaf() uint32 {
	return c.maxLeaf
}

// MaxExtendedLeaf returns the highest supported extended leaf, or 0.
func (c *Cache) MaxExtendedLeaf() uint32 {
	return c.maxExtLeaf
}

// Len returns the number of distinct queries issued so far.
func (c *Cache) Len() int {
	return len(c.results)
}

// CountsSubleaves reports whether leaf publishes its highest valid
// sub-leaf in sub-leaf 0 EAX.
func CountsSubleaves(leaf uint32) bool {
	switch leaf {
	case 0x7, 0x14, 0x17, 0x18, 0x1D, 0x20, 0x23:
		return true
	}
	return false
}
