package services

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 6, 18, 9, 30, 45, 0, time.UTC)

	num := GenerateOrderNumber(now)
	if len(num) != 26 {
		t.Fatalf("order number length = %d, want 26: %q", len(num), num)
	}
	if !strings.HasPrefix(num, "20250618093045") {
		t.Errorf("order number %q should carry the UTC timestamp prefix", num)
	}

	suffix := num[14:]
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("suffix contains non-hex character %q in %q", r, num)
		}
	}
}

func TestGenerateOrderNumberUsesUTC(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	local := time.Date(2025, 6, 18, 2, 0, 0, 0, loc)

	num := GenerateOrderNumber(local)
	if !strings.HasPrefix(num, "20250617180000") {
		t.Errorf("order number %q should use the UTC clock, not the local one", num)
	}
}

func TestGenerateOrderNumberUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		num := GenerateOrderNumber(now)
		if seen[num] {
			t.Fatalf("duplicate order number %q after %d generations", num, i)
		}
		seen[num] = true
	}
}
