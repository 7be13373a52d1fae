package gossip

import "testing"

func baseIndex() Index {
	return Index{Genesis: "G", Highest: "H", Height: 10, Timestamp: 1700000000, Peers: []string{"a", "b"}}
}

func TestIndexEqualIdentical(t *testing.T) {
	a, b := baseIndex(), baseIndex()
	if !a.Equal(b) {
		t.Fatalf("expected identical indexes to be equal")
	}
}

func TestIndexEqualBreaksOnEachField(t *testing.T) {
	base := baseIndex()

	variants := []Index{
		{Genesis: "G2", Highest: base.Highest, Height: base.Height, Timestamp: base.Timestamp, Peers: base.Peers},
		{Genesis: base.Genesis, Highest: "H2", Height: base.Height, Timestamp: base.Timestamp, Peers: base.Peers},
		{Genesis: base.Genesis, Highest: base.Highest, Height: base.Height + 1, Timestamp: base.Timestamp, Peers: base.Peers},
		{Genesis: base.Genesis, Highest: base.Highest, Height: base.Height, Timestamp: base.Timestamp + 1, Peers: base.Peers},
		{Genesis: base.Genesis, Highest: base.Highest, Height: base.Height, Timestamp: base.Timestamp, Peers: []string{"a"}},
	}
	for i, v := range variants {
		if base.Equal(v) {
			t.Fatalf("variant %d: expected inequality, field change was not detected", i)
		}
	}
}
