package geom

import "testing"

func TestSquareDistance(t *testing.T) {
	tests := []struct {
		name string
		p, q Point
		want int
	}{
		{"same point", Pt(3, 4), Pt(3, 4), 0},
		{"horizontal", Pt(0, 0), Pt(3, 0), 9},
		{"vertical", Pt(0, 0), Pt(0, -4), 16},
		{"diagonal", Pt(1, 1), Pt(4, 5), 25},
		{"far azimuth", Pt(0, 4), Pt(-2, 130), 4 + 126*126},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.SquareDistance(tt.q); got != tt.want {
				t.Errorf("%v.SquareDistance(%v) = %d, want %d", tt.p, tt.q, got, tt.want)
			}
			if got := tt.q.SquareDistance(tt.p); got != tt.want {
				t.Errorf("SquareDistance is not symmetric: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPointString(t *testing.T) {
	if got := Pt(2, -1).String(); got != "(x:2, y:-1)" {
		t.Errorf("String() = %q, want %q", got, "(x:2, y:-1)")
	}
}
