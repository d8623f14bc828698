package identity

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-p2pchat/config"
)

func TestGenerate(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	assert.Equal(t, pb.KeyType_Ed25519, id.PublicKey().Type())
	assert.NotEmpty(t, id.ID())
	assert.True(t, id.ID().MatchesPublicKey(id.PublicKey()))
	assert.Equal(t, id.ID().String(), id.String())
}

func TestGenerate_Distinct(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestIdentity_Sign(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	data := []byte("hello")
	sig, err := id.Sign(data)
	require.NoError(t, err)

	ok, err := id.PublicKey().Verify(data, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdentity_MarshalPublicKey(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	raw, err := id.MarshalPublicKey()
	require.NoError(t, err)

	pub, err := crypto.UnmarshalPublicKey(raw)
	require.NoError(t, err)
	assert.True(t, pub.Equals(id.PublicKey()))
}

func TestFromPrivateKey_Nil(t *testing.T) {
	_, err := FromPrivateKey(nil)
	assert.ErrorIs(t, err, ErrNilPrivateKey)
}

func TestModule(t *testing.T) {
	var id *Identity
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, id)
	assert.NotEmpty(t, id.ID())
}

func TestProvideIdentity_UnsupportedKeyType(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Identity.KeyType = "RSA"
	_, err := ProvideIdentity(ModuleInput{Config: cfg})
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}
