package builtin

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		expr string
		want any
	}{
		{"base64(user:passwd)", "dXNlcjpwYXNzd2Q="},
		{`base64Decode("aGk=")`, "hi"},
		{"md5(abc)", "900150983cd24fb0d6963f7d28e17f72"},
		{"sha256(abc)", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"urlEncode('a b&c')", "a+b%26c"},
		{"urlDecode(a+b%26c)", "a b&c"},
		{"random(5, 5)", 5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := r.Call(tt.expr)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Generators(t *testing.T) {
	r := NewRegistry()

	id, ok := r.Call("uuid()")
	require.True(t, ok)
	_, err := uuid.Parse(id.(string))
	assert.NoError(t, err)

	s, ok := r.Call("randomString(12)")
	require.True(t, ok)
	assert.Len(t, s, 12)

	n, ok := r.Call("random(1, 3)")
	require.True(t, ok)
	assert.GreaterOrEqual(t, n.(int), 1)
	assert.LessOrEqual(t, n.(int), 3)

	ts, ok := r.Call("timestamp()")
	require.True(t, ok)
	assert.Greater(t, ts.(int64), int64(0))

	email, ok := r.Call("randomEmail()")
	require.True(t, ok)
	assert.Regexp(t, `^[a-z]{8}@[a-z]{6}\.com$`, email)

	date, ok := r.Call("date(2006)")
	require.True(t, ok)
	_, err = strconv.Atoi(date.(string))
	assert.NoError(t, err)
}

func TestRegistry_Failures(t *testing.T) {
	r := NewRegistry()

	for _, expr := range []string{
		"unknown()",
		"not a call",
		"random(x, 10)",
		"random(10, 1)",
		"base64()",
		"base64Decode(!!!)",
	} {
		_, ok := r.Call(expr)
		assert.False(t, ok, expr)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", func(args []string) (any, error) {
		return "UP:" + args[0], nil
	})

	got, ok := r.Call("upper(x)")
	require.True(t, ok)
	assert.Equal(t, "UP:x", got)
	assert.Contains(t, r.Names(), "upper")
}

func TestRegistry_Env(t *testing.T) {
	t.Setenv("REQSPEC_BUILTIN_ENV", "value")
	got, ok := NewRegistry().Call("env(REQSPEC_BUILTIN_ENV)")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "d"}, parseArgs(`a, "b, c", 'd'`))
	assert.Nil(t, parseArgs(""))
}
