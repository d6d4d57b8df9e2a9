package auth

import (
	"context"
	"testing"

	"forexBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		wantLen int
		wantErr bool
	}{
		{name: "two users", list: "abc:alice, def:bob", wantLen: 2},
		{name: "empty", list: "", wantLen: 0},
		{name: "trailing comma", list: "abc:alice,", wantLen: 1},
		{name: "missing user", list: "abc:", wantErr: true},
		{name: "no separator", list: "abc", wantErr: true},
		{name: "duplicate token", list: "abc:alice,abc:bob", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseTokens(tt.list)
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, st.Len())
		})
	}
}

func TestVerify(t *testing.T) {
	st, err := ParseTokens("abc:alice,def:bob")
	require.NoError(t, err)
	ctx := context.Background()

	user, err := st.Verify(ctx, "def")
	require.NoError(t, err)
	assert.Equal(t, "bob", user)

	_, err = st.Verify(ctx, "nope")
	assert.ErrorIs(t, err, ports.ErrUnauthorized)

	_, err = st.Verify(ctx, "")
	assert.ErrorIs(t, err, ports.ErrUnauthorized)
}
