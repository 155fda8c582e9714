package seq

import "testing"

func TestGeneratorStaysInDomain(t *testing.T) {
	g := New(10000, 19999)
	seen := make(map[uint32]bool)
	for i := 0; i < 10000; i++ {
		v := g.Next()
		if v < 10000 || v > 19999 {
			t.Fatalf("value %d out of domain", v)
		}
		seen[v] = true
	}
	if len(seen) != 10000 {
		t.Fatalf("expected 10000 distinct values within one span, got %d", len(seen))
	}
}

func TestGeneratorWrapsAndRepeats(t *testing.T) {
	g := New(1, 254)
	first := g.Next()
	for i := 0; i < 253; i++ {
		g.Next()
	}
	wrapped := g.Next()
	if wrapped != first {
		t.Fatalf("expected wrap to repeat first value %d, got %d", first, wrapped)
	}
}

func TestCommandSeqConstants(t *testing.T) {
	g := NewCommandSeq()
	for i := 0; i < 3; i++ {
		v := g.Next()
		if v < FirstCmd || v > LastCmd {
			t.Fatalf("command seq %d out of [%d,%d]", v, FirstCmd, LastCmd)
		}
	}
}

func TestActionSeqConstants(t *testing.T) {
	g := NewActionSeq()
	for i := 0; i < 300; i++ {
		v := g.Next()
		if v < FirstAction || v > LastAction {
			t.Fatalf("action seq %d out of [%d,%d]", v, FirstAction, LastAction)
		}
	}
}

func TestMsgIDSeqConstants(t *testing.T) {
	g := NewMsgIDSeq()
	for i := 0; i < 300; i++ {
		v := g.Next()
		if v < FirstMsgID || v > LastMsgID {
			t.Fatalf("msg id %d out of [%d,%d]", v, FirstMsgID, LastMsgID)
		}
	}
}

func TestIndependentGeneratorsDoNotCollideAcrossConnections(t *testing.T) {
	a := NewActionSeq()
	b := NewActionSeq()
	if a.Next() != b.Next() {
		t.Fatalf("fresh generators over the same domain should start identically (process-local, not shared)")
	}
}
