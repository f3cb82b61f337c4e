package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF21 in UTF-16 but after it in UTF-8.
	obj := IRObject{"Ａ": IRInt(1), "\U0001F600": IRInt(2), "a": IRInt(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "Ａ"}, obj.SortedKeys())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   IRValue
		cmp    int
		sameOK bool
	}{
		{"ints", IRInt(1), IRInt(2), -1, true},
		{"equal strings", IRString("x"), IRString("x"), 0, true},
		{"bools", IRBool(true), IRBool(false), 1, true},
		{"null first", IRNull{}, IRInt(0), -1, false},
		{"mixed kinds", IRString("1"), IRInt(1), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.cmp, cmp)
			assert.Equal(t, tt.sameOK, ok)
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name": "Alice",
		"age":  30,
		"tags": []any{"a", true},
		"dist": float64(12),
		"none": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"name": IRString("Alice"),
		"age":  IRInt(30),
		"tags": IRArray{IRString("a"), IRBool(true)},
		"dist": IRInt(12),
		"none": IRNull{},
	}, v)

	_, err = FromAny(1.5)
	assert.Error(t, err)
}

func TestIRObject_JSONRoundTrip(t *testing.T) {
	obj := Obj(O{"id", IRString("p1")}, O{"big", IRInt(1 << 60)}, O{"links", IRArray{IRString("d1")}})

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"big":1152921504606846976,"id":"p1","links":["d1"]}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, obj, back)
}

func TestUnmarshalIRValue_RejectsFloats(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"x": 1.25}`))
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	orig := IRObject{"tags": IRArray{IRString("a")}, "meta": IRObject{"k": IRInt(1)}}
	c := orig.Clone()
	c["tags"].(IRArray)[0] = IRString("changed")
	c["meta"].(IRObject)["k"] = IRInt(2)

	assert.Equal(t, IRString("a"), orig["tags"].(IRArray)[0])
	assert.Equal(t, IRInt(1), orig["meta"].(IRObject)["k"])
}

func TestString(t *testing.T) {
	assert.Equal(t, "Alice", String(IRString("Alice")))
	assert.Equal(t, "42", String(IRInt(42)))
	assert.Equal(t, "<null>", String(IRNull{}))
	assert.Equal(t, `["a",1]`, String(IRArray{IRString("a"), IRInt(1)}))
}
