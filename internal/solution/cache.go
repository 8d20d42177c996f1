package solution

// Cache is a fixed-capacity LRU set of recently touched vertices.
// The most recently touched vertex comes first.
type Cache struct {
	capacity   int
	prev, next []int
	present    []bool
	head, tail int
	size       int
}

// NewCache creates a cache for vertices in [0, n) holding at most capacity entries
func NewCache(n, capacity int) *Cache {
	if capacity > n {
		capacity = n
	}
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache{
		capacity: capacity,
		prev:     make([]int, n),
		next:     make([]int, n),
		present:  make([]bool, n),
		head:     Dummy,
		tail:     Dummy,
	}
	return c
}

// Insert marks v as the most recently touched vertex, evicting the oldest one if full
func (c *Cache) Insert(v int) {
	if c.present[v] {
		if c.head == v {
			return
		}
		c.unlink(v)
		c.pushFront(v)
		return
	}
	if c.size == c.capacity {
		old := c.tail
		c.unlink(old)
		c.present[old] = false
		c.size--
	}
	c.present[v] = true
	c.size++
	c.pushFront(v)
}

func (c *Cache) unlink(v int) {
	p, n := c.prev[v], c.next[v]
	if p == Dummy {
		c.head = n
	} else {
		c.next[p] = n
	}
	if n == Dummy {
		c.tail = p
	} else {
		c.prev[n] = p
	}
}

func (c *Cache) pushFront(v int) {
	c.prev[v] = Dummy
	c.next[v] = c.head
	if c.head != Dummy {
		c.prev[c.head] = v
	} else {
		c.tail = v
	}
	c.head = v
}

// Contains reports whether v is cached
func (c *Cache) Contains(v int) bool { return c.present[v] }

// Len returns the number of cached vertices
func (c *Cache) Len() int { return c.size }

// Capacity returns the maximum number of cached vertices
func (c *Cache) Capacity() int { return c.capacity }

// Vertices appends the cached vertices to dst, most recent first
func (c *Cache) Vertices(dst []int) []int {
	for v := c.head; v != Dummy; v = c.next[v] {
		dst = append(dst, v)
	}
	return dst
}

// Clear empties the cache
func (c *Cache) Clear() {
	for v := c.head; v != Dummy; {
		n := c.next[v]
		c.present[v] = false
		v = n
	}
	c.head, c.tail, c.size = Dummy, Dummy, 0
}

func (c *Cache) clone() *Cache {
	return &Cache{
		capacity: c.capacity,
		prev:     append([]int(nil), c.prev...),
		next:     append([]int(nil), c.next...),
		present:  append([]bool(nil), c.present...),
		head:     c.head,
		tail:     c.tail,
		size:     c.size,
	}
}
