package quality

import "testing"

func TestShouldSuppress(t *testing.T) {
	f := DefaultFilterParams()

	cases := []struct {
		name    string
		likes   int
		ageMin  float64
		quality float64
		scored  bool
		want    bool
	}{
		{"high velocity, low quality", 150, 5, 0.2, true, true},
		{"high velocity, good quality", 150, 5, 1.2, true, false},
		{"slow, low quality", 20, 5, 0.2, true, false},
		{"high likes but old", 150, 60, 0.2, true, false},
		{"exactly at likes threshold", 100, 5, 0.2, true, false},
		{"exactly at window edge", 150, 10, 0.2, true, false},
		{"quality exactly at threshold", 150, 5, 0.5, true, false},
		{"unscored fails open", 150, 5, 0, false, false},
	}

	for _, c := range cases {
		got := f.ShouldSuppress(c.likes, c.ageMin, c.quality, c.scored)
		if got != c.want {
			t.Errorf("%s: ShouldSuppress = %v, want %v", c.name, got, c.want)
		}
	}
}
