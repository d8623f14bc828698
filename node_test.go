package p2pchat

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/app/session"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/util/addrutil"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Pnet.RepoPath = t.TempDir()
	cfg.Transport.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) (*Node, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	n, err := New(WithConfig(cfg), WithOutput(out))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { n.Close() })
	return n, out
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithConfig(nil))
	assert.ErrorIs(t, err, config.ErrNilConfig)

	_, err = New(WithListenAddrs("not-an-addr"))
	assert.Error(t, err)

	_, err = New(WithOutput(nil))
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.Topic = ""
	_, err := New(WithConfig(cfg))
	assert.Error(t, err)
}

func TestNode_Lifecycle(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)), WithOutput(io.Discard))
	require.NoError(t, err)

	_, err = n.Dial("/ip4/127.0.0.1/tcp/1")
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)

	assert.Equal(t, n.ID(), n.Swarm().LocalPeer())
	assert.NotEmpty(t, n.ListenAddrs())
	assert.False(t, n.SwarmKey().Enabled())
	assert.NotNil(t, n.Metrics())

	require.NoError(t, n.Close())
	assert.NoError(t, n.Close())
	assert.True(t, n.Swarm().IsClosed())
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
}

func TestNode_ListenAddrsOption(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/1"}

	n, err := New(WithConfig(cfg), WithListenAddrs("/ip4/127.0.0.1/tcp/0"), WithOutput(io.Discard))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Close()

	require.Len(t, n.Swarm().Listeners(), 1)
	assert.NotContains(t, n.Swarm().Listeners()[0].String(), "/tcp/1")
}

func TestNode_SwarmKey(t *testing.T) {
	cfg := testConfig(t)
	key := "/key/swarm/psk/1.0.0/\n/base16/\n" + strings.Repeat("ab", 32) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Pnet.RepoPath, config.SwarmKeyFile), []byte(key), 0o600))

	n, _ := startNode(t, cfg)
	assert.True(t, n.SwarmKey().Enabled())
	assert.Len(t, n.SwarmKey().Fingerprint(), 32)
}

func TestNode_MalformedSwarmKey(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Pnet.RepoPath, config.SwarmKeyFile), []byte("garbage"), 0o600))

	_, err := New(WithConfig(cfg), WithOutput(io.Discard))
	assert.ErrorIs(t, err, pnet.ErrMalformedKey)
}

// ============================================================================
//                              聊天
// ============================================================================

func TestNode_Chat(t *testing.T) {
	a, aOut := startNode(t, testConfig(t))
	b, bOut := startNode(t, testConfig(t))

	target := addrutil.WithPeerID(b.Swarm().Listeners()[0], b.ID())
	addr, err := a.Dial(target)
	require.NoError(t, err)
	assert.Equal(t, b.Swarm().Listeners()[0], addr)
	assert.Contains(t, aOut.String(), "removing peer id /p2p/"+b.ID().String()+" so this address can be dialed")

	require.True(t, a.Subscribe("chat"))
	require.True(t, b.Subscribe("chat"))
	require.Eventually(t, func() bool {
		return len(a.Behaviour().Gossipsub().TopicPeers("chat")) == 1
	}, 10*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in, w := io.Pipe()
	defer w.Close()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, session.WithInput(in)) }()

	a.Publish("chat", []byte("hello from a"))

	require.Eventually(t, func() bool {
		return strings.Contains(bOut.String(), "Got message: hello from a with id: "+a.ID().String())
	}, 10*time.Second, 10*time.Millisecond)
	assert.Contains(t, bOut.String(), "Address /ip4/127.0.0.1/tcp/")
	assert.Contains(t, bOut.String(), "from peer: "+a.ID().String())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	mfs, err := b.Metrics().Gather()
	require.NoError(t, err)
	delivered := 0.0
	for _, mf := range mfs {
		if mf.GetName() == "p2pchat_gossip_delivered_total" {
			delivered = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, delivered)
}

func TestNode_RunCommands(t *testing.T) {
	n, out := startNode(t, testConfig(t))

	err := n.Run(context.Background(), session.WithInput(strings.NewReader("SUB chat\nSUB chat\n")))
	require.ErrorIs(t, err, session.ErrStdinClosed)

	assert.Contains(t, out.String(), "Subscribed to topic chat\n")
	assert.Contains(t, out.String(), "Failed to subscribe to topic\n")
	assert.Equal(t, []string{"chat"}, n.Behaviour().Gossipsub().Topics())
}

func TestNode_CloseWithoutStart(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)), WithOutput(io.Discard))
	require.NoError(t, err)

	require.NoError(t, n.Close())
	assert.True(t, n.Swarm().IsClosed())
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
}
