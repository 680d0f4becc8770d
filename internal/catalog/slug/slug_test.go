package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Áo thun Nike":            "ao-thun-nike",
		"ao-thun-nike":            "ao-thun-nike",
		"  Giày   Adidas!! ":      "giay-adidas",
		"Đồng hồ Casio":           "dong-ho-casio",
		"iPhone 15 Pro Max":       "iphone-15-pro-max",
		"--already--hyphenated--": "already-hyphenated",
		"":                        "",
		"!!!":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), "Make(%q)", in)
	}
}

func TestMakeIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Áo thun Nike", "Quần Jean Levi's 501", "Đ-đ"} {
		once := Make(in)
		assert.Equal(t, once, Make(once))
	}
}
