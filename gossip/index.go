package gossip

// Index is a peer's snapshot of its chain: genesis signature, current
// head, height, the peer's own clock, and the peer URLs it knows of.
// Two Index values are equal iff every field is equal.
type Index struct {
	Genesis   Hash
	Highest   Hash
	Height    uint64
	Timestamp int64 // seconds since Unix epoch
	Peers     []string
}

// Equal reports whether a and b describe the same chain snapshot.
func (a Index) Equal(b Index) bool {
	if a.Genesis != b.Genesis || a.Highest != b.Highest || a.Height != b.Height || a.Timestamp != b.Timestamp {
		return false
	}
	if len(a.Peers) != len(b.Peers) {
		return false
	}
	for i, p := range a.Peers {
		if b.Peers[i] != p {
			return false
		}
	}
	return true
}
