package display

import "testing"

func TestLines(t *testing.T) {
	tests := []struct {
		pool, collector float32
		pump, heat      bool
		want1, want2    string
	}{
		{27.3, 41.0, true, false, "P:27.3 Pump:ON  ", "H:41.0 Heat:OFF "},
		{8.04, 9.96, false, true, "P:8.0 Pump:OFF  ", "H:10.0 Heat:ON  "},
		{-127, -127, false, false, "P:-127.0 Pump:OF", "H:-127.0 Heat:OF"},
	}
	for _, tt := range tests {
		l1, l2 := Lines(tt.pool, tt.collector, tt.pump, tt.heat)
		if l1 != tt.want1 {
			t.Errorf("line 1: got %q, want %q", l1, tt.want1)
		}
		if l2 != tt.want2 {
			t.Errorf("line 2: got %q, want %q", l2, tt.want2)
		}
		if len(l1) != Cols || len(l2) != Cols {
			t.Errorf("lines not %d wide: %d, %d", Cols, len(l1), len(l2))
		}
	}
}

func TestFake(t *testing.T) {
	f := NewFake()
	if f.Last() != [2]string{} {
		t.Error("expected empty last frame")
	}
	f.Show("a", "b")
	f.Show("c", "d")
	if f.Last() != [2]string{"c", "d"} || len(f.Frames) != 2 {
		t.Errorf("frames: %v", f.Frames)
	}
}
