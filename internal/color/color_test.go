package color

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"#1a2b3c", true},
		{"#FFFFFF", true},
		{"#1a2b3", false},
		{"1a2b3c", false},
		{"", false},
		{"#1a2b3cd", false},
		{"x1a2b3c", false},
	}
	for _, tc := range cases {
		err := Validate(tc.value)
		if tc.ok && err != nil {
			t.Errorf("Validate(%q) = %v, want nil", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("Validate(%q) = nil, want error", tc.value)
		}
	}
}
