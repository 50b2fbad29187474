package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5, 0, 3) = %d", got)
	}
	if got := Clamp(-1.5, 0.0, 1.0); got != 0 {
		t.Errorf("Clamp(-1.5, 0, 1) = %f", got)
	}
	if got := Clamp[uint32](2, 1, 3); got != 2 {
		t.Errorf("Clamp(2, 1, 3) = %d", got)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size, alignment, want uint64
	}{
		{480, 256, 512},
		{512, 256, 512},
		{1, 64, 64},
		{0, 64, 0},
		{480, 0, 480},
		{480, 16, 480},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.size, tt.alignment); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.size, tt.alignment, got, tt.want)
		}
	}
}

func TestDegToRad(t *testing.T) {
	if got := RadToDeg(DegToRad(90)); got < 89.999 || got > 90.001 {
		t.Errorf("RadToDeg(DegToRad(90)) = %f", got)
	}
}
