package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true},
		{" 2.50 ", 250, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"92233720368547758.07", 9223372036854775807, true},
		{"92233720368547758.08", 0, false},
		{"1e20", 0, false},
		{"-1e20", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneySplit(t *testing.T) {
	tests := []struct {
		cents int64
		n     int
		want  int64
	}{
		{10000, 3, 3333},
		{10000, 1, 10000},
		{10000, 0, 10000},
		{20000, 3, 6667},
		{100, 8, 12},  // 12.5 ties to even
		{300, 8, 38},  // 37.5 ties to even
		{999, 10, 100}, // 99.9
	}
	for _, tt := range tests {
		got := Money{Cents: tt.cents}.Split(tt.n)
		if got.Cents != tt.want {
			t.Errorf("Money{%d}.Split(%d) = %d, want %d", tt.cents, tt.n, got.Cents, tt.want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 3333}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":33.33}` {
		t.Fatalf("marshal = %s", b)
	}

	for _, in := range []string{`12.5`, `"12.5"`, `"12,50"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Cents != 1250 {
			t.Fatalf("unmarshal %s = %d, want 1250", in, m.Cents)
		}
	}
}

func TestMoneyJSON_RejectsOutOfRange(t *testing.T) {
	for _, in := range []string{`1e20`, `"100000000000000000"`, `-1e30`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("unmarshal %s = %v (cents %d), want ErrInvalidAmount", in, err, m.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: 5}).String(); got != "0.05" {
		t.Errorf("String() = %q", got)
	}
	if got := (Money{Cents: -1250}).String(); got != "-12.50" {
		t.Errorf("String() = %q", got)
	}
}
