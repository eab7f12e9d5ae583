package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsExtractsKind(t *testing.T) {
	err := Auth("bad credentials")
	pe, ok := As(err)
	require.True(t, ok)
	require.Equal(t, KindAuth, pe.Kind)
}

func TestAsFailsForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	require.False(t, ok)
}

func TestFatalKinds(t *testing.T) {
	require.True(t, KindTransport.Fatal())
	require.True(t, KindFraming.Fatal())
	require.True(t, KindCrypto.Fatal())
	require.True(t, KindReplay.Fatal())
	require.False(t, KindAuth.Fatal())
	require.False(t, KindNotFound.Fatal())
}

func TestReplayMessageFormat(t *testing.T) {
	err := Replay(3, 7)
	require.Contains(t, err.Error(), "3")
	require.Contains(t, err.Error(), "7")
}
