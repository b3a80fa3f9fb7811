package extract

import "sync"

// PathCache memoises parsed paths by their literal text. Safe for concurrent
// use; parse errors are not cached.
type PathCache struct {
	paths sync.Map // string -> Path
}

func NewPathCache() *PathCache {
	return &PathCache{}
}

func (c *PathCache) Parse(path string) (Path, error) {
	if cached, ok := c.paths.Load(path); ok {
		return cached.(Path), nil
	}
	parsed, err := ParsePath(path)
	if err != nil {
		return Path{}, err
	}
	// Parsing is deterministic, so a concurrent duplicate store is harmless.
	c.paths.Store(path, parsed)
	return parsed, nil
}

// Len reports the number of cached paths.
func (c *PathCache) Len() int {
	n := 0
	c.paths.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
