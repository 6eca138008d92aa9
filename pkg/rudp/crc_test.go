package rudp

import "testing"

func TestFrameCRCDeterministic(t *testing.T) {
	a := frameCRC([]byte("hello rudp"))
	b := frameCRC([]byte("hello rudp"))
	if a != b {
		t.Fatalf("frameCRC not deterministic: %d != %d", a, b)
	}
}

func TestFrameCRCDetectsMutation(t *testing.T) {
	orig := []byte{1, 2, 3, 4, 5}
	mutated := []byte{1, 2, 3, 4, 6}
	if frameCRC(orig) == frameCRC(mutated) {
		t.Fatal("single-byte mutation produced the same CRC")
	}
}

func TestFrameCRCEmpty(t *testing.T) {
	if frameCRC(nil) != 0 {
		t.Fatalf("frameCRC(nil) = %d, want 0 (init value 0, xor-out 0)", frameCRC(nil))
	}
}
