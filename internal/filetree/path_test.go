package filetree

import "testing"

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		n    int
	}{
		{"", "/", 0},
		{"/", "/", 0},
		{"a/b", "/a/b", 2},
		{"/a//b/", "/a/b", 2},
	}
	for _, tt := range tests {
		p := ParsePath(tt.in)
		if p.String() != tt.want || len(p) != tt.n {
			t.Errorf("ParsePath(%q) = %q (len %d), want %q (len %d)", tt.in, p.String(), len(p), tt.want, tt.n)
		}
	}
}

func TestPathChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "a"
	x := base.Child("x")
	y := base.Child("y")
	if x.String() != "/a/x" || y.String() != "/a/y" {
		t.Errorf("Child aliasing: x=%q y=%q", x.String(), y.String())
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		a, b Path
		want bool
	}{
		{Path{}, Path{"a"}, true},
		{Path{"a"}, Path{"a", "b"}, true},
		{Path{"a", "b"}, Path{"a"}, true},
		{Path{"a"}, Path{"b"}, false},
		{Path{"a", "b"}, Path{"a", "c"}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0.0MB"},
		{40 * 1024, "0.0MB"},
		{1024 * 1024, "1.0MB"},
		{2411724, "2.3MB"},
		{150 * 1024 * 1024, "150.0MB"},
		{262144, "0.3MB"},
		{1310720, "1.3MB"},
		{52428, "0.0MB"},
		{52429, "0.1MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
