package cityjson

// IndexMap records old-id to new-id assignments for one renumbering pass.
// New ids are handed out densely in first-seen order, starting at the
// configured offset. The same type is used for vertex, material, texture
// and texture-vertex ids; each pass owns its own instances.
type IndexMap struct {
	oldnew map[int]int
	offset int
}

func NewIndexMap(offset int) *IndexMap {
	return &IndexMap{
		oldnew: make(map[int]int),
		offset: offset,
	}
}

// Resolve returns the new id for old, assigning the next free id on a miss.
// The first sighting of an old id fixes its new id for the table's lifetime.
func (m *IndexMap) Resolve(old int) int {
	if n, ok := m.oldnew[old]; ok {
		return n
	}
	n := len(m.oldnew) + m.offset
	m.oldnew[old] = n
	return n
}

// Get looks up old without assigning.
func (m *IndexMap) Get(old int) (int, bool) {
	n, ok := m.oldnew[old]
	return n, ok
}

// Put records an explicit assignment, overriding first-seen numbering.
func (m *IndexMap) Put(old, new int) {
	m.oldnew[old] = new
}

func (m *IndexMap) Len() int {
	return len(m.oldnew)
}

// Each visits every (old, new) pair in unspecified order.
func (m *IndexMap) Each(fn func(old, new int)) {
	for old, new := range m.oldnew {
		fn(old, new)
	}
}
