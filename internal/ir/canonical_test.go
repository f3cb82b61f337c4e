package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", IRObject{"b": IRInt(1), "a": IRInt(2)}, `{"a":2,"b":1}`},
		{"no html escaping", IRString("<a&b>"), `"<a&b>"`},
		{"nfc normalization", IRString("e\u0301"), "\"\u00e9\""},
		{"line separator literal", IRString("x\u2028y"), "\"x\u2028y\""},
		{"escaped backslash kept", IRString(`\u2028`), `"\\u2028"`},
		{"null allowed", IRObject{"dog": IRNull{}}, `{"dog":null}`},
		{"nested", IRArray{IRObject{"k": IRBool(true)}}, `[{"k":true}]`},
		{"go values", map[string]any{"n": 1, "s": "x"}, `{"n":1,"s":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err)
}

func TestRowFingerprint(t *testing.T) {
	a := IRObject{"name": IRString("e\u0301"), "age": IRInt(3)}
	b := IRObject{"age": IRInt(3), "name": IRString("\u00e9")}
	c := IRObject{"age": IRInt(4), "name": IRString("\u00e9")}

	assert.Equal(t, MustRowFingerprint(a), MustRowFingerprint(b), "normalization and key order must not matter")
	assert.NotEqual(t, MustRowFingerprint(a), MustRowFingerprint(c))

	rowFP := MustRowFingerprint(IRObject{"v": IRInt(1)})
	valFP, err := ValueFingerprint(IRObject{"v": IRInt(1)})
	require.NoError(t, err)
	assert.NotEqual(t, rowFP, valFP, "domains must separate row and value hashes")
}
