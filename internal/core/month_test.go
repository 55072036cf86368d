package core

import "testing"

func TestParseMonthRef(t *testing.T) {
	valid := map[string]MonthRef{
		"2024-02": {2024, 2},
		"1999-12": {1999, 12},
		"2025-01": {2025, 1},
	}
	for in, want := range valid {
		got, err := ParseMonthRef(in)
		if err != nil || got != want {
			t.Errorf("ParseMonthRef(%q) = %v, %v; want %v", in, got, err, want)
		}
		if got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}

	for _, in := range []string{"", "2024-2", "2024-13", "2024-00", "24-02", "2024-02-01", "2024/02", " 2024-02"} {
		_, err := ParseMonthRef(in)
		if !IsValidation(err) {
			t.Errorf("ParseMonthRef(%q) expected validation error, got %v", in, err)
		}
	}
}

func TestMonthRefNavigation(t *testing.T) {
	jan := MonthRef{2024, 1}
	if got := jan.Prev(); got != (MonthRef{2023, 12}) {
		t.Errorf("Prev() = %v", got)
	}
	dec := MonthRef{2024, 12}
	if got := dec.Next(); got != (MonthRef{2025, 1}) {
		t.Errorf("Next() = %v", got)
	}
	feb := MonthRef{2024, 2}
	if feb.First() != NewDate(2024, 2, 1) || feb.Last() != NewDate(2024, 2, 29) {
		t.Errorf("First/Last = %s/%s", feb.First(), feb.Last())
	}
}
