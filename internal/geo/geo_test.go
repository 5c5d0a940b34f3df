package geo

import (
	"errors"
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	origins := []LLA{
		{Lat: 0, Lon: 0, Alt: 0},
		{Lat: 48.2, Lon: 16.4, Alt: 180},
		{Lat: -33.86, Lon: 151.21, Alt: 30},
		{Lat: 78.2, Lon: 15.6, Alt: 10},
		{Lat: 37.4, Lon: -122.1, Alt: -20},
	}
	offsets := []NED{
		{North: 0, East: 0, Down: 0},
		{North: 1200, East: -340, Down: -80},
		{North: -25000, East: 18000, Down: 300},
		{North: 40000, East: 40000, Down: -1500},
	}
	for _, o := range origins {
		for _, off := range offsets {
			p := ToLLA(o, off)
			n := ToNED(o, p)
			back := ToLLA(o, n)
			if math.Abs(back.Lat-p.Lat) > 1e-6 || math.Abs(back.Lon-p.Lon) > 1e-6 || math.Abs(back.Alt-p.Alt) > 0.01 {
				t.Fatalf("origin %+v offset %+v: round trip %+v -> %+v", o, off, p, back)
			}
			if math.Abs(n.North-off.North) > 0.01 || math.Abs(n.East-off.East) > 0.01 || math.Abs(n.Down-off.Down) > 0.01 {
				t.Fatalf("origin %+v: NED %+v, want %+v", o, n, off)
			}
		}
	}
}

func TestToNEDAxes(t *testing.T) {
	o := LLA{Lat: 10, Lon: 20, Alt: 0}
	n := ToNED(o, LLA{Lat: 10.001, Lon: 20, Alt: 0})
	if n.North < 100 || n.North > 120 || math.Abs(n.East) > 1e-6 {
		t.Fatalf("north offset = %+v", n)
	}
	n = ToNED(o, LLA{Lat: 10, Lon: 20, Alt: 50})
	if math.Abs(n.Down+50) > 1e-6 {
		t.Fatalf("down = %v, want -50", n.Down)
	}
}

func TestValidateLLA(t *testing.T) {
	cases := []struct {
		name string
		p    LLA
		ok   bool
	}{
		{"valid", LLA{Lat: 45, Lon: 90}, true},
		{"edges", LLA{Lat: -90, Lon: 180}, true},
		{"lat high", LLA{Lat: 90.1}, false},
		{"lon low", LLA{Lon: -181}, false},
		{"nan", LLA{Lat: math.NaN()}, false},
		{"inf alt", LLA{Alt: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLLA(tc.p)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("error = %v, want ErrInvalidCoordinate", err)
			}
		})
	}
}

func TestDistanceAndBearing(t *testing.T) {
	a := LLA{Lat: 0, Lon: 0}
	b := LLA{Lat: 0, Lon: 1}
	d := Distance(a, b)
	if d < 110000 || d > 112000 {
		t.Fatalf("distance = %v", d)
	}
	if br := Bearing(a, b); math.Abs(br-90) > 0.01 {
		t.Fatalf("bearing = %v, want 90", br)
	}
}

func TestFromScaled(t *testing.T) {
	p := FromScaled(482000000, 164000000, 12)
	if math.Abs(p.Lat-48.2) > 1e-9 || math.Abs(p.Lon-16.4) > 1e-9 || p.Alt != 12 {
		t.Fatalf("got %+v", p)
	}
}

func TestHomeLocationNotifies(t *testing.T) {
	h, err := NewHomeLocation(LLA{Lat: 1, Lon: 2})
	if err != nil {
		t.Fatalf("NewHomeLocation: %v", err)
	}
	var got []LLA
	cancel := h.Subscribe(func(o LLA) { got = append(got, o) })
	if err := h.Set(LLA{Lat: 3, Lon: 4}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.Set(LLA{Lat: 100}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("Set invalid: %v", err)
	}
	cancel()
	_ = h.Set(LLA{Lat: 5, Lon: 6})
	if len(got) != 1 || got[0].Lat != 3 {
		t.Fatalf("notifications = %+v", got)
	}
	if h.Origin().Lat != 5 {
		t.Fatalf("origin = %+v", h.Origin())
	}
}
