package charset

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		expected Encoding
	}{
		{"UTF-8 BOM", []byte{0xEF, 0xBB, 0xBF, 'n', 'o', 'm', 'e'}, EncodingUTF8},
		{"plain ASCII", []byte("nome,categoria"), EncodingUTF8},
		{"UTF-8 accents", []byte("João,Médico"), EncodingUTF8},
		{"Latin-1 accents", []byte{'J', 'o', 0xE3, 'o'}, EncodingISO88591},
		{"Windows-1252 quotes", []byte{0x93, 'o', 'i', 0x94, 0xE9}, EncodingWindows1252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectEncoding(tt.content))
		})
	}
}

func TestDecode(t *testing.T) {
	out, err := Decode([]byte{'M', 0xE9, 'd', 'i', 'c', 'o'}, EncodingISO88591)
	require.NoError(t, err)
	assert.Equal(t, "Médico", out)

	out, err = Decode([]byte{0x93, 'x', 0x94}, EncodingWindows1252)
	require.NoError(t, err)
	assert.Equal(t, "“x”", out)

	// valid UTF-8 is never decoded twice
	out, err = Decode([]byte("Médico"), EncodingWindows1252)
	require.NoError(t, err)
	assert.Equal(t, "Médico", out)

	out, err = Decode([]byte{0xEF, 0xBB, 0xBF, 'a'}, EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "a", out)
}

func TestToUTF8Reader(t *testing.T) {
	r := ToUTF8Reader(strings.NewReader(string([]byte{'J', 'o', 0xE3, 'o'})), EncodingISO88591)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "João", string(out))
}
