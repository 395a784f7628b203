package sections

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
		{"trims", "  hello  ", "hello"},
		{"collapses runs", "a   b \n\n c", "a b c"},
		{"literal tabs", "a\tb", "a b"},
		{"escaped newline", `first\nsecond`, "first second"},
		{"escaped tab", `col1\tcol2`, "col1 col2"},
		{"mixed", " \\n x \t\\t y\n", "x y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
