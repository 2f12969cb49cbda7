package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdinal(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "bosqich form", token: "3-bosqich", want: 3},
		{name: "level form", token: "level_3", want: 3},
		{name: "zero stage", token: "0-bosqich", want: 0},
		{name: "bare number", token: "5", want: 5},
		{name: "numeric prefix", token: "4-bosqich (eski)", want: 4},
		{name: "uppercase", token: "LEVEL_2", want: 2},
		{name: "whitespace", token: "  1-bosqich ", want: 1},
		{name: "empty", token: "", want: 0},
		{name: "garbage", token: "garbage", want: 0},
		{name: "no digits after prefix", token: "level_x", want: 0},
		{name: "negative-looking", token: "-3", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ordinal(tt.token))
		})
	}
}

func TestOrdinalEncodingsAgree(t *testing.T) {
	for n := 0; n <= MaxStage; n++ {
		bosqich := Token(n)
		levelForm := "level_" + string(rune('0'+n))
		assert.Equal(t, Ordinal(bosqich), Ordinal(levelForm), "encodings must normalize to the same ordinal")
		assert.Equal(t, n, Ordinal(bosqich))
	}
}

func TestToken(t *testing.T) {
	assert.Equal(t, "0-bosqich", Token(0))
	assert.Equal(t, "7-bosqich", Token(7))
	assert.Equal(t, "0-bosqich", Token(-1))
}

func TestNext(t *testing.T) {
	assert.Equal(t, "2-bosqich", Next("1-bosqich"))
	assert.Equal(t, "4-bosqich", Next("level_3"))
	assert.Equal(t, "1-bosqich", Next(""))
	assert.Equal(t, "1-bosqich", Next("garbage"))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare("2-bosqich", "level_2"))
	assert.Equal(t, -1, Compare("1-bosqich", "3-bosqich"))
	assert.Equal(t, 1, Compare("level_5", "4-bosqich"))
}
