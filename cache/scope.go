package cache

// Scope partitions the cache keyspace. Scopes are isolated from each other
// across all tiers: a key set in one scope is invisible to the others.
type Scope int

const (
	// ScopeProcess holds process-global entries (search results, shard
	// locations, template catalogs).
	ScopeProcess Scope = iota + 1
	// ScopeUser holds per-user entries.
	ScopeUser
	// ScopeDocument holds per-document entries.
	ScopeDocument
)

var scopePrefixes = map[Scope]string{
	ScopeProcess:  "proc",
	ScopeUser:     "user",
	ScopeDocument: "doc",
}

// String returns the scope's keyspace prefix name.
func (s Scope) String() string {
	if p, ok := scopePrefixes[s]; ok {
		return p
	}
	return "proc"
}

// Key maps a caller key into the scope's keyspace. All tier reads and writes
// go through this single prefixing function, so cross-scope collisions are
// structurally impossible.
func (s Scope) Key(key string) string {
	return s.String() + ":" + key
}
