package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+98 912 111 2233", "+989121112233"},
		{"0098-912-111-2233", "+989121112233"},
		{"989121112233", "+989121112233"},
		{"(98) 912.111.2233", "+989121112233"},
		{"abc", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsDigits(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123456", true},
		{"0", true},
		{"", false},
		{"12a4", false},
		{"12 34", false},
		{"-12", false},
	}
	for _, c := range cases {
		if got := IsDigits(c.in); got != c.want {
			t.Errorf("IsDigits(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !ParseBoolEnv("TEST_BOOL", false) {
		t.Error("yes should parse as true")
	}
	t.Setenv("TEST_BOOL", "off")
	if ParseBoolEnv("TEST_BOOL", true) {
		t.Error("off should parse as false")
	}
	t.Setenv("TEST_BOOL", "banana")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("invalid value should return the default")
	}
	if ParseBoolEnv("TEST_BOOL_UNSET", false) {
		t.Error("unset value should return the default")
	}
}

func TestParseListEnv(t *testing.T) {
	t.Setenv("TEST_LIST", " +98912 , ,+98913,")
	got := ParseListEnv("TEST_LIST")
	if len(got) != 2 || got[0] != "+98912" || got[1] != "+98913" {
		t.Errorf("ParseListEnv = %v", got)
	}
	if got := ParseListEnv("TEST_LIST_UNSET"); got != nil {
		t.Errorf("unset list = %v, want nil", got)
	}
}
