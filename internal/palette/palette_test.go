package palette

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexColor = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func parseHex(t *testing.T, c string) (r, g, b int) {
	t.Helper()
	_, err := fmt.Sscanf(c, "#%02x%02x%02x", &r, &g, &b)
	require.NoError(t, err)
	return r, g, b
}

func TestHex_PrimaryHues(t *testing.T) {
	tests := []struct {
		name    string
		h       uint16
		channel int
	}{
		{"red", 0, 0},
		{"green", 512, 1},
		{"blue", 1024, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, g, b := parseHex(t, Hex(tc.h, 255, 128))
			rgb := [3]int{r, g, b}
			for i, v := range rgb {
				if i == tc.channel {
					assert.GreaterOrEqual(t, v, 250)
				} else {
					assert.LessOrEqual(t, v, 5)
				}
			}
		})
	}

	assert.Equal(t, "#808080", Hex(700, 0, 128), "zero saturation is gray")
}

func TestAssign_OneColorPerName(t *testing.T) {
	a := NewAssigner(42)
	m := a.Assign([]string{"Bali", "Jawa Barat", "Papua", "Bali"})

	require.Len(t, m, 3)
	for name, c := range m {
		assert.Regexp(t, hexColor, c, name)
	}
}

func TestAssign_PastelBand(t *testing.T) {
	a := NewAssigner(7)
	names := make([]string, 200)
	for i := range names {
		names[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
	}

	for name, c := range a.Assign(names) {
		r, g, b := parseHex(t, c)

		maxc := max(r, g, b)
		minc := min(r, g, b)
		lightness := float64(maxc+minc) / 2 / 255 * 100
		assert.GreaterOrEqual(t, lightness, LightnessMin-1, name)
		assert.LessOrEqual(t, lightness, LightnessMax+1, name)
	}
}

func TestAssign_DeterministicForSeed(t *testing.T) {
	names := []string{"Aceh", "Bali", "Banten"}
	a := NewAssigner(1337).Assign(names)
	b := NewAssigner(1337).Assign(names)
	assert.Equal(t, a, b)
}

func TestMap_Fallback(t *testing.T) {
	m := Map{"Bali": "#abcdef"}
	assert.Equal(t, "#abcdef", m.Color("Bali"))
	assert.Equal(t, FallbackColor, m.Color("Atlantis"))

	var empty Map
	assert.Equal(t, FallbackColor, empty.Color("Bali"))
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    [3]uint8
		wantErr bool
	}{
		{in: "#3388ff", want: [3]uint8{0x33, 0x88, 0xff}},
		{in: "#FFF", want: [3]uint8{255, 255, 255}},
		{in: " 9ecae1 ", want: [3]uint8{0x9e, 0xca, 0xe1}},
		{in: "#12345", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			c, err := ParseHex(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, [3]uint8{c.R, c.G, c.B})
			assert.Equal(t, uint8(255), c.A)
		})
	}
}

func TestHSLRoundTrip(t *testing.T) {
	for _, hex := range []string{"#3388ff", "#9ecae1", "#cccccc", "#e6550d"} {
		c, err := ParseHex(hex)
		require.NoError(t, err)

		h, s, l := rgbToHSL(c.R, c.G, c.B)
		r, g, b := hslToRGB(h, s, l)
		assert.InDelta(t, c.R, r, 3, hex)
		assert.InDelta(t, c.G, g, 3, hex)
		assert.InDelta(t, c.B, b, 3, hex)
	}
}

func TestShade(t *testing.T) {
	red, err := ParseHex("#ff0000")
	require.NoError(t, err)

	dark := Shade(red, 0.5)
	assert.InDelta(t, 128, dark.R, 6)
	assert.LessOrEqual(t, dark.G, uint8(5))
	assert.LessOrEqual(t, dark.B, uint8(5))
	assert.Equal(t, red.A, dark.A)

	assert.InDelta(t, red.R, Shade(red, 1).R, 2)
}
