package server

import "testing"

func TestRenderPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"compacts json", "{\n  \"a\": 1\n}", `{"a":1}`},
		{"json array", "[1, 2, 3]", "[1,2,3]"},
		{"json string", `"hi"`, `"hi"`},
		{"plain text unchanged", "not json at all", "not json at all"},
		{"truncated json unchanged", `{"a":`, `{"a":`},
		{"empty unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderPayload(tt.in); got != tt.want {
				t.Errorf("renderPayload(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
