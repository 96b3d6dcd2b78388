package model

import (
	"testing"
	"time"
)

func TestWindowLabel(t *testing.T) {
	cases := []struct {
		window Window
		want   string
	}{
		{WindowDaily, "今日"},
		{WindowWeekly, "本周"},
		{WindowMonthly, "本月"},
		{Window("hourly"), "hourly"},
	}
	for _, c := range cases {
		if got := c.window.Label(); got != c.want {
			t.Errorf("Label(%q) = %q, want %q", c.window, got, c.want)
		}
	}
}

func TestPermissionAllows(t *testing.T) {
	p := Permission{
		Features: []FeatureCode{FeatureAIAsk, FeatureCodeReview},
	}

	if !p.Allows(FeatureAIAsk) {
		t.Error("expected ai_ask to be allowed")
	}
	if !p.Allows(FeatureCodeReview) {
		t.Error("expected code_review to be allowed")
	}
	if p.Allows(FeatureVideoSummary) {
		t.Error("expected video_summary to be denied")
	}

	empty := Permission{}
	if empty.Allows(FeatureAIAsk) {
		t.Error("empty permission should deny everything")
	}
}

func TestPermissionLimitFor(t *testing.T) {
	p := Permission{
		Features: []FeatureCode{FeatureAIAsk, FeatureCodeReview},
		Limits: map[FeatureCode]WindowedLimit{
			FeatureAIAsk: {Limit: 10, Window: WindowDaily},
		},
	}

	limit, ok := p.LimitFor(FeatureAIAsk)
	if !ok {
		t.Fatal("expected a limit entry for ai_ask")
	}
	if limit.Limit != 10 || limit.Window != WindowDaily {
		t.Errorf("unexpected limit %+v", limit)
	}

	// A feature with no limit entry is unlimited
	if _, ok := p.LimitFor(FeatureCodeReview); ok {
		t.Error("code_review should have no limit entry")
	}
}

func TestWindowedLimitUnlimited(t *testing.T) {
	if !(WindowedLimit{Limit: UnlimitedUses}).Unlimited() {
		t.Error("-1 should be unlimited")
	}
	if (WindowedLimit{Limit: 0}).Unlimited() {
		t.Error("0 should not be unlimited")
	}
	if (WindowedLimit{Limit: 10, Window: WindowDaily}).Unlimited() {
		t.Error("10 should not be unlimited")
	}
}

func TestPermissionScanValueRoundtrip(t *testing.T) {
	original := Permission{
		Features: []FeatureCode{FeatureAIAsk, FeatureGenerateLecture},
		Limits: map[FeatureCode]WindowedLimit{
			FeatureAIAsk:           {Limit: 200, Window: WindowWeekly},
			FeatureGenerateLecture: {Limit: UnlimitedUses, Window: WindowMonthly},
		},
	}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}

	var decoded Permission
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	if len(decoded.Features) != 2 || decoded.Features[0] != FeatureAIAsk {
		t.Errorf("features did not roundtrip: %+v", decoded.Features)
	}
	limit, ok := decoded.LimitFor(FeatureAIAsk)
	if !ok || limit.Limit != 200 || limit.Window != WindowWeekly {
		t.Errorf("ai_ask limit did not roundtrip: %+v", limit)
	}
	limit, _ = decoded.LimitFor(FeatureGenerateLecture)
	if !limit.Unlimited() {
		t.Errorf("unlimited marker did not roundtrip: %+v", limit)
	}
}

func TestPermissionScanNil(t *testing.T) {
	var p Permission
	if err := p.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if p.Allows(FeatureAIAsk) {
		t.Error("nil scan should yield an empty permission")
	}

	if err := p.Scan([]byte{}); err != nil {
		t.Fatalf("Scan(empty) failed: %v", err)
	}
}

func TestMembershipTierSoldOut(t *testing.T) {
	unlimited := MembershipTier{IsLimited: false, SoldCount: 9999}
	if unlimited.SoldOut() {
		t.Error("unlimited tier can never sell out")
	}

	limited := MembershipTier{IsLimited: true, TotalQuota: 100, SoldCount: 99}
	if limited.SoldOut() {
		t.Error("tier with a remaining slot should not be sold out")
	}

	limited.SoldCount = 100
	if !limited.SoldOut() {
		t.Error("tier at quota should be sold out")
	}
}

func TestUserMembershipActiveAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	m := UserMembership{
		IsActive:  true,
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 20),
	}
	if !m.ActiveAt(now) {
		t.Error("membership covering now should be active")
	}

	m.EndDate = now.Add(-time.Second)
	if m.ActiveAt(now) {
		t.Error("expired membership should be inactive")
	}

	m.EndDate = now.AddDate(0, 0, 20)
	m.IsActive = false
	if m.ActiveAt(now) {
		t.Error("deactivated membership should be inactive even before end date")
	}
}
