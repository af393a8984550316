package abac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttributeValue_IsArray(t *testing.T) {
	require.True(t, StringArrayAttr([]string{"a"}).IsArray())
	require.True(t, NumberArrayAttr([]float64{1}).IsArray())
	require.False(t, StringAttr("a").IsArray())
	require.False(t, NumberAttr(1).IsArray())
	require.False(t, BoolAttr(true).IsArray())
}

func TestAttributes_Get(t *testing.T) {
	attrs := Attributes{"role": StringAttr("admin")}
	v, ok := attrs.Get("role")
	require.True(t, ok)
	require.Equal(t, "admin", v.StringVal)

	_, ok = attrs.Get("missing")
	require.False(t, ok)
}

func TestValueKind_String(t *testing.T) {
	require.Equal(t, "string", KindString.String())
	require.Equal(t, "array<number>", KindNumberArray.String())
}
