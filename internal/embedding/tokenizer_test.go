package embedding

import (
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != 101 || ids[3] != 102 {
		t.Errorf("expected CLS/SEP at 0 and 3, got %v", ids)
	}
	if want := []int64{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}; !reflect.DeepEqual(attn, want) {
		t.Errorf("attention mask: got %v", attn)
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	if ids[3] != 102 || attn[3] != 1 {
		t.Errorf("SEP should close a full sequence: %v", ids)
	}
}

func TestTerms(t *testing.T) {
	got := Terms("Termination: either party may terminate with 30 days' notice.")
	want := []string{"termination", "either", "party", "may", "terminate", "with", "30", "days", "notice"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if Terms("  ... ") != nil {
		t.Error("no terms should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should usually hash differently")
	}
}
