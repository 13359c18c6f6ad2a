package commodity

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func makeRoot(t *testing.T, buckets ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", b, err)
		}
	}
	return root
}

func TestExtractFirstKeywordWins(t *testing.T) {
	m := NewMapper(makeRoot(t, Gold, Silver, Wti), testLogger)

	bucket, ok := m.Extract("Gold and silver both rallied today")
	if !ok || bucket != Gold {
		t.Errorf("expected Gold, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractCaseInsensitive(t *testing.T) {
	m := NewMapper(makeRoot(t, Wti), testLogger)

	bucket, ok := m.Extract("WTI Crude Futures Slip On Inventory Build")
	if !ok || bucket != Wti {
		t.Errorf("expected Wti, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractAluminiumSpellings(t *testing.T) {
	m := NewMapper(makeRoot(t, Aluminum), testLogger)

	for _, text := range []string{"Aluminium premiums climb", "Aluminum output falls"} {
		bucket, ok := m.Extract(text)
		if !ok || bucket != Aluminum {
			t.Errorf("text %q: expected Aluminum, got %q (ok=%v)", text, bucket, ok)
		}
	}
}

func TestExtractOilCatchAll(t *testing.T) {
	m := NewMapper(makeRoot(t, Wti, Brent), testLogger)

	// Generic "oil" headlines land in Wti, not Brent.
	bucket, ok := m.Extract("Oil steadies after OPEC meeting")
	if !ok || bucket != Wti {
		t.Errorf("expected Wti, got %q (ok=%v)", bucket, ok)
	}

	bucket, ok = m.Extract("Brent spread narrows as oil rallies")
	if !ok || bucket != Brent {
		t.Errorf("expected Brent, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractShortTickerRequiresWordBoundary(t *testing.T) {
	m := NewMapper(makeRoot(t, Ethereum, Wheat, Corn), testLogger)

	// "eth" hides inside "whether"; grain headlines must not land in the
	// Ethereum bucket.
	bucket, ok := m.Extract("Wheat outlook uncertain on whether rains arrive")
	if !ok || bucket != Wheat {
		t.Errorf("expected Wheat, got %q (ok=%v)", bucket, ok)
	}

	bucket, ok = m.Extract("Corn and wheat rally together on export demand")
	if !ok || bucket != Corn {
		t.Errorf("expected Corn, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractShortTickerStillMatchesStandalone(t *testing.T) {
	m := NewMapper(makeRoot(t, Ethereum, Bitcoin, Gold), testLogger)

	cases := map[string]string{
		"ETH breaks above resistance":   Ethereum,
		"eth/usd pair volume surges":    Ethereum,
		"BTC steadies after selloff":    Bitcoin,
		"XAU hits a fresh record high":  Gold,
		"Bitcoins change hands at 100k": Bitcoin, // long keyword stays a substring match
	}
	for text, want := range cases {
		bucket, ok := m.Extract(text)
		if !ok || bucket != want {
			t.Errorf("text %q: expected %s, got %q (ok=%v)", text, want, bucket, ok)
		}
	}
}

func TestExtractNoMatch(t *testing.T) {
	m := NewMapper(makeRoot(t, Gold), testLogger)

	bucket, ok := m.Extract("Central bank leaves policy rate unchanged")
	if ok || bucket != "" {
		t.Errorf("expected no match, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractSkipsMissingDirectory(t *testing.T) {
	// "gold" matches first but the Gold directory does not exist, so the
	// scan continues and "silver" resolves.
	m := NewMapper(makeRoot(t, Silver), testLogger)

	bucket, ok := m.Extract("gold and silver markets diverge")
	if !ok || bucket != Silver {
		t.Errorf("expected Silver, got %q (ok=%v)", bucket, ok)
	}
}

func TestExtractNeverReturnsUncachedBucket(t *testing.T) {
	root := makeRoot(t, Gold, Bitcoin)
	m := NewMapper(root, testLogger)

	texts := []string{
		"gold climbs", "silver slides", "oil jumps", "bitcoin drops",
		"corn harvest outlook", "nothing relevant here",
	}
	for _, text := range texts {
		bucket, ok := m.Extract(text)
		if !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, bucket)); err != nil {
			t.Errorf("text %q mapped to %q with no backing directory", text, bucket)
		}
	}
}

func TestCacheNotRefreshed(t *testing.T) {
	root := makeRoot(t)
	m := NewMapper(root, testLogger)

	// Directory created after construction is invisible to the mapper.
	if err := os.MkdirAll(filepath.Join(root, Gold), 0o755); err != nil {
		t.Fatal(err)
	}
	if bucket, ok := m.Extract("gold rally"); ok {
		t.Errorf("expected stale cache miss, got %q", bucket)
	}
}

func TestMissingRootYieldsEmptyMapper(t *testing.T) {
	m := NewMapper(filepath.Join(t.TempDir(), "does-not-exist"), testLogger)
	if bucket, ok := m.Extract("gold"); ok {
		t.Errorf("expected miss on empty cache, got %q", bucket)
	}
}
