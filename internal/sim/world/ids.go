package world

// idCounter hands out waypoint ids. Ids are unique for the lifetime of a
// world and never reused.
type idCounter struct {
	last uint64
}

func (c *idCounter) next() uint64 {
	c.last++
	return c.last
}
