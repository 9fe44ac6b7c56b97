package models

import "testing"

func TestFormatReceipt(t *testing.T) {
	tests := []struct {
		date string
		seq  int
		want string
	}{
		{"20260301", 1, "SEVA-20260301-0001"},
		{"20260301", 42, "SEVA-20260301-0042"},
		{"20261231", 9999, "SEVA-20261231-9999"},
		{"20261231", 10000, "SEVA-20261231-10000"},
	}
	for _, tt := range tests {
		if got := FormatReceipt(tt.date, tt.seq); got != tt.want {
			t.Errorf("FormatReceipt(%s, %d) = %s, want %s", tt.date, tt.seq, got, tt.want)
		}
	}
}

func TestMajorString(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{50000, "500.00"},
		{123456, "1234.56"},
		{-2500, "-25.00"},
	}
	for _, tt := range tests {
		if got := MajorString(tt.minor); got != tt.want {
			t.Errorf("MajorString(%d) = %s, want %s", tt.minor, got, tt.want)
		}
	}
}

func TestCountable(t *testing.T) {
	t.Run("Given a completed donation When not deleted Then it counts", func(t *testing.T) {
		d := &Donation{Status: DonationCompleted}
		if !d.Countable() {
			t.Error("completed donation should count")
		}
	})
	t.Run("Given a soft-deleted donation When checked Then it does not count", func(t *testing.T) {
		d := &Donation{Status: DonationCompleted, SoftDeleted: true}
		if d.Countable() {
			t.Error("soft-deleted donation must not count")
		}
	})
	t.Run("Given a pending donation When checked Then it does not count", func(t *testing.T) {
		d := &Donation{Status: DonationPending}
		if d.Countable() {
			t.Error("pending donation must not count")
		}
	})
}

func TestItemStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		donated int64
		target  int64
		want    ItemStatus
	}{
		{"nothing donated", 0, 100000, ItemPending},
		{"partially funded", 40000, 100000, ItemPartial},
		{"exactly funded", 100000, 100000, ItemCompleted},
		{"over target", 120000, 100000, ItemCompleted},
		{"no target set stays partial", 500, 0, ItemPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemStatusFor(tt.donated, tt.target); got != tt.want {
				t.Errorf("ItemStatusFor(%d, %d) = %s, want %s", tt.donated, tt.target, got, tt.want)
			}
		})
	}
}
