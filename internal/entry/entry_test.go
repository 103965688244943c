package entry

import (
	"os"
	"testing"
)

func TestFailClearsSizes(t *testing.T) {
	e := New("a")
	e.Flags = FlagFile
	e.Size = 4096
	e.Blocks = 4096
	if !e.Measured() {
		t.Fatalf("expected measured entry")
	}

	e.Fail()
	if e.Measured() {
		t.Fatalf("errored entry should not be measured")
	}
	if e.Size != 0 || e.Blocks != 0 {
		t.Fatalf("expected sizes cleared, got size=%d blocks=%d", e.Size, e.Blocks)
	}
	if !e.Flags.Has(FlagFile | FlagError) {
		t.Fatalf("unexpected flags %s", e.Flags)
	}
}

func TestFlagMarker(t *testing.T) {
	cases := []struct {
		flags Flag
		kind  Kind
		want  string
	}{
		{FlagFile, KindFile, " "},
		{FlagDir | FlagError, KindDir, "!"},
		{FlagDir | FlagExcluded, KindDir, "<"},
		{FlagDir | FlagOtherFS, KindDir, ">"},
		{FlagFile | FlagHardLinked, KindFile, "H"},
		{0, KindSymlink, "@"},
	}
	for _, c := range cases {
		if got := c.flags.Marker(c.kind); got != c.want {
			t.Errorf("Marker(%s, %s) = %q, want %q", c.flags, c.kind, got, c.want)
		}
	}
}

func TestKindFromMode(t *testing.T) {
	if KindFromMode(os.ModeDir|0o755) != KindDir {
		t.Fatalf("expected dir")
	}
	if KindFromMode(os.ModeSymlink) != KindSymlink {
		t.Fatalf("expected symlink")
	}
	if KindFromMode(0o644) != KindFile {
		t.Fatalf("expected file")
	}
	if KindFromMode(os.ModeNamedPipe) != KindOther {
		t.Fatalf("expected other")
	}
}
