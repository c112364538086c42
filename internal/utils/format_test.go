package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		7:        "7",
		600:      "600",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-12345:   "-12,345",
		-100:     "-100",
		10000000: "10,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCount(in), "FormatCount(%d)", in)
	}
}
