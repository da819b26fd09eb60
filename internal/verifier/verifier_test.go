package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeRowNullAndBytes(t *testing.T) {
	out := serializeRow([]string{"id", "name", "data"}, []interface{}{int64(1), nil, []byte("blob")})
	assert.Equal(t, "id=1\x00name=NULL\x00data=blob", out)
}

func TestSerializeRowOrderSensitiveWithinRow(t *testing.T) {
	a := serializeRow([]string{"a", "b"}, []interface{}{1, 2})
	b := serializeRow([]string{"a", "b"}, []interface{}{2, 1})
	assert.NotEqual(t, a, b)
}
