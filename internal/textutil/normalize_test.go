package textutil

import "testing"

func TestNormalizeTitleComposesAndCollapses(t *testing.T) {
	decomposed := "Cafe\u0301  opens\n in  Paris "
	composed := "Caf\u00e9 opens in Paris"
	if got := NormalizeTitle(decomposed); got != composed {
		t.Fatalf("NormalizeTitle = %q, want %q", got, composed)
	}
	if NormalizeTitle(composed) != NormalizeTitle(decomposed) {
		t.Fatal("expected equivalent titles to normalise identically")
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"RENDER_COMPLETE": "Render Complete",
		"PENDING":         "Pending",
		"":                "",
	}
	for in, want := range cases {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("短视频脚本生成", 5); got != "短视..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
