package models

import "testing"

func TestFingerprint(t *testing.T) {
	a := Fingerprint("same body")
	b := Fingerprint("same body")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length: got %d", len(a))
	}
	if Fingerprint("other body") == a {
		t.Fatal("different content must not collide on a short input")
	}
	if Fingerprint("") != "" {
		t.Fatal("empty content must have no fingerprint")
	}
}

func TestConfidenceRank(t *testing.T) {
	if ConfidenceSpeculative.Rank() >= ConfidenceConfirmed.Rank() {
		t.Fatal("confidence order broken")
	}
	if Confidence("nonsense").Rank() != -1 {
		t.Fatal("unknown confidence must rank -1")
	}
}

func TestNormalizeConfidence(t *testing.T) {
	if got := NormalizeConfidence("likely"); got != ConfidenceLikely {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeConfidence("Very High"); got != ConfidenceDeveloping {
		t.Fatalf("unknown must normalize to developing, got %q", got)
	}
}
