package fastparse

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseFloat(t *testing.T) {
	v, err := ParseFloat(" 80.5 ")
	if err != nil || v != 80.5 {
		t.Fatalf("ParseFloat=%v,%v want 80.5", v, err)
	}
	if _, err := ParseFloat("abc"); err == nil {
		t.Fatal("非数字应返回错误")
	}
}

func TestParseOptionalFloat(t *testing.T) {
	v, err := ParseOptionalFloat("  ")
	if err != nil || v != 0 {
		t.Fatalf("空字段=%v,%v want 0", v, err)
	}
	v, err = ParseOptionalFloat("1.25")
	if err != nil || v != 1.25 {
		t.Fatalf("ParseOptionalFloat=%v,%v want 1.25", v, err)
	}
}

func TestIsInteger(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1700000000000", true},
		{"-5", true},
		{"+7", true},
		{"", false},
		{"-", false},
		{"1.5", false},
		{"2024-01-01T00:00:00Z", false},
	}
	for _, tt := range tests {
		if got := IsInteger(tt.in); got != tt.want {
			t.Errorf("IsInteger(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatParse_RoundTrip_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("最短格式化后可精确解析回原值", prop.ForAll(
		func(v float64) bool {
			got, err := ParseFloat(strconv.FormatFloat(v, 'f', -1, 64))
			return err == nil && got == v
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}
