package addrutil

import (
	"bytes"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPeer = "QmcgpsyWgH8Y8ajJz1Cu72KnS5uo2Aa2LpzU7kinSupNKC"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		stripped bool
	}{
		{
			name:     "legacy ipfs suffix",
			input:    "/ip4/1.2.3.4/tcp/4001/ipfs/" + testPeer,
			expected: "/ip4/1.2.3.4/tcp/4001",
			stripped: true,
		},
		{
			name:     "p2p suffix",
			input:    "/ip4/1.2.3.4/tcp/4001/p2p/" + testPeer,
			expected: "/ip4/1.2.3.4/tcp/4001",
			stripped: true,
		},
		{
			name:     "no suffix",
			input:    "/ip4/127.0.0.1/tcp/4001",
			expected: "/ip4/127.0.0.1/tcp/4001",
		},
		{
			name:     "ip6",
			input:    "/ip6/::1/tcp/4001/ipfs/" + testPeer,
			expected: "/ip6/::1/tcp/4001",
			stripped: true,
		},
		{
			name:     "surrounding spaces",
			input:    "  /ip4/10.0.0.1/tcp/1  ",
			expected: "/ip4/10.0.0.1/tcp/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			addr, err := NormalizeTo(&out, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr.String())

			if tt.stripped {
				assert.Equal(t, "removing peer id /p2p/"+testPeer+" so this address can be dialed\n", out.String())
			} else {
				assert.Empty(t, out.String())
			}
		})
	}
}

func TestNormalize_NonTrailingPeerKept(t *testing.T) {
	var out bytes.Buffer
	addr, err := NormalizeTo(&out, "/ipfs/"+testPeer+"/p2p-circuit")
	require.NoError(t, err)
	assert.Equal(t, "/p2p/"+testPeer+"/p2p-circuit", addr.String())
	assert.Empty(t, out.String())
}

func TestNormalize_Invalid(t *testing.T) {
	_, err := Normalize("")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	_, err = Normalize("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Normalize("/ip4/1.2.3.4/tcp/notaport")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Normalize("/ipfs/" + testPeer)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSplitPeerID(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)

	full := ma.StringCast("/ip4/1.2.3.4/tcp/4001/p2p/" + id.String())
	rest, got := SplitPeerID(full)
	assert.Equal(t, id, got)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001", rest.String())

	plain := ma.StringCast("/ip4/1.2.3.4/tcp/4001")
	rest, got = SplitPeerID(plain)
	assert.Equal(t, peer.ID(""), got)
	assert.True(t, rest.Equal(plain))

	rest, got = SplitPeerID(nil)
	assert.Nil(t, rest)
	assert.Empty(t, got)
}

func TestWithPeerID(t *testing.T) {
	id, err := peer.Decode(testPeer)
	require.NoError(t, err)

	shown := WithPeerID(ma.StringCast("/ip4/127.0.0.1/tcp/4001"), id)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001/ipfs/"+testPeer, shown)

	// 展示形式经过规范化后回到可拨号地址
	addr, err := Normalize(shown)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001", addr.String())
}
