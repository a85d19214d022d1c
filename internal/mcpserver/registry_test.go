package mcpserver

import "testing"

func TestPaginateFirstPageHasMore(t *testing.T) {
	keys := sortedKeys(100)

	page, next, hasMore, err := paginate(keys, "", intPtr(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 50 {
		t.Fatalf("expected 50 items, got %d", len(page))
	}
	if !hasMore {
		t.Fatal("expected hasMore true")
	}
	if next == "" {
		t.Fatal("expected a non-empty cursor")
	}

	page2, next2, hasMore2, err := paginate(keys, next, intPtr(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2) != 50 {
		t.Fatalf("expected remaining 50 items, got %d", len(page2))
	}
	if hasMore2 {
		t.Fatal("expected hasMore false on final page")
	}
	if next2 != "" {
		t.Fatal("expected empty cursor on final page")
	}

	seen := map[string]bool{}
	for _, k := range page {
		seen[k] = true
	}
	for _, k := range page2 {
		if seen[k] {
			t.Fatalf("key %q appeared in both pages", k)
		}
	}
}

func TestPaginateNegativeLimitRejected(t *testing.T) {
	keys := sortedKeys(10)
	_, _, _, err := paginate(keys, "", intPtr(-1))
	if err != errPageLimit {
		t.Fatalf("expected errPageLimit, got %v", err)
	}
}

// TestPaginateExplicitZeroLimitRejected: a client that sends "limit":0
// explicitly gets -32602, not a silently-substituted default page. This
// is distinct from an absent limit, which defaults.
func TestPaginateExplicitZeroLimitRejected(t *testing.T) {
	keys := sortedKeys(10)
	_, _, _, err := paginate(keys, "", intPtr(0))
	if err != errPageLimit {
		t.Fatalf("expected errPageLimit for explicit zero limit, got %v", err)
	}
}

func TestPaginateAbsentLimitDefaults(t *testing.T) {
	keys := sortedKeys(60)
	page, _, hasMore, err := paginate(keys, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != defaultPageLimit {
		t.Fatalf("expected default limit %d, got %d", defaultPageLimit, len(page))
	}
	if !hasMore {
		t.Fatal("expected hasMore true")
	}
}

func TestPaginateLimitCappedAtMax(t *testing.T) {
	keys := sortedKeys(500)
	page, _, _, err := paginate(keys, "", intPtr(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != maxPageLimit {
		t.Fatalf("expected capped limit %d, got %d", maxPageLimit, len(page))
	}
}

func intPtr(n int) *int {
	return &n
}

func sortedKeys(n int) []string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = padded(i)
	}
	return keys
}

func padded(i int) string {
	digits := "0123456789"
	s := ""
	for i > 0 || s == "" {
		s = string(digits[i%10]) + s
		i /= 10
	}
	for len(s) < 5 {
		s = "0" + s
	}
	return s
}
