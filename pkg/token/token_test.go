package token

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotent(t *testing.T) {
	id1 := Register("TEST_IDEMPOTENT")
	id2 := Register("TEST_IDEMPOTENT")

	assert.Equal(t, id1, id2, "same name should return same ID")
	assert.True(t, IsDynamic(id1))
	assert.Equal(t, "TEST_IDEMPOTENT", id1.String())
}

func TestRegisterConcurrent(t *testing.T) {
	const numGoroutines = 50
	var wg sync.WaitGroup
	ids := make([]TokenType, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids[idx] = Register("TEST_CONCURRENT")
		}(i)
	}
	wg.Wait()

	for i := 1; i < numGoroutines; i++ {
		require.Equal(t, ids[0], ids[i])
	}
}

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		in   string
		want TokenType
	}{
		{"select", SELECT},
		{"merge", MERGE},
		{"rename", RENAME},
		{"into", INTO},
		{"orders", IDENT},
		{"replace", IDENT},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LookupIdent(tt.in), tt.in)
	}
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "SELECT", SELECT.String())
	assert.Equal(t, "::", DCOLON.String())
	assert.Equal(t, "TOKEN(4242)", TokenType(4242).String())
	assert.True(t, IsKeyword(USING))
	assert.False(t, IsKeyword(IDENT))
}
