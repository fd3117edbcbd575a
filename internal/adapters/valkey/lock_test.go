package valkey

import "testing"

func TestLockKey(t *testing.T) {
	l := &Locker{prefix: "geodrop:claim:lock:"}
	got := l.lockKey("42|0xabc")
	if want := "geodrop:claim:lock:42:0xabc"; got != want {
		t.Errorf("lockKey() = %q, want %q", got, want)
	}
}
