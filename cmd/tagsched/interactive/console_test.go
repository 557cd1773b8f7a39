package interactive

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/tagsched/pkg/persistence"
	"github.com/mash-protocol/tagsched/pkg/service"
	"github.com/mash-protocol/tagsched/pkg/valuecache"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	catalog := testCatalog(t)
	srv := service.NewDataServer(catalog, valuecache.NewMemory(), service.DefaultConfig())

	var out bytes.Buffer
	c := &Console{catalog: catalog, out: &out}
	c.Attach(srv)
	return c, &out
}

func TestConsoleSubscribeFlow(t *testing.T) {
	c, out := newTestConsole(t)

	require.True(t, c.exec("sub temp@50ms flow@1s 42@1s"))
	assert.Contains(t, out.String(), "Session ")
	assert.Contains(t, out.String(), "OK   temp             requested 50ms, rate 100ms (pending)")
	assert.Contains(t, out.String(), "FAIL #42")

	out.Reset()
	require.True(t, c.exec("ready temp flow"))
	require.True(t, c.exec("intervals"))
	assert.Contains(t, out.String(), "100ms  1 subscription(s): temp")
	assert.Contains(t, out.String(), "1s  1 subscription(s): flow")

	out.Reset()
	require.True(t, c.exec("modify temp@100:1s"))
	require.True(t, c.exec("tag temp"))
	assert.Contains(t, out.String(), "OK   temp             100ms -> 1s")
	assert.Contains(t, out.String(), "floor 100ms, 1 subscription(s)")

	out.Reset()
	require.True(t, c.exec("unsub temp@1s flow@1s"))
	require.True(t, c.exec("intervals"))
	assert.Contains(t, out.String(), "No active intervals")
	require.NoError(t, c.srv.Verify())
}

func TestConsoleSessions(t *testing.T) {
	c, out := newTestConsole(t)

	require.True(t, c.exec("open"))
	first := c.session
	require.True(t, c.exec("sub flow@2s"))
	require.True(t, c.exec("ready flow"))
	require.True(t, c.exec("close"))
	assert.Empty(t, c.session)
	assert.Contains(t, out.String(), "Closed "+first)
	assert.Empty(t, c.srv.ActiveIntervals())

	out.Reset()
	require.True(t, c.exec("close"))
	assert.Contains(t, out.String(), "Error: no session")
}

func TestConsoleSnapshot(t *testing.T) {
	c, out := newTestConsole(t)

	require.True(t, c.exec("sub temp@1s flow@2s"))
	require.True(t, c.exec("ready temp"))

	path := filepath.Join(t.TempDir(), "snap.cbor")
	out.Reset()
	require.True(t, c.exec("snapshot "+path))
	assert.Contains(t, out.String(), "1 interval(s), 1 subscription(s), 1 pending")
	assert.Contains(t, out.String(), "Saved "+path)

	snap, err := persistence.NewSnapshotStore(path).Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Subscriptions())
}

func TestConsoleErrorsAndQuit(t *testing.T) {
	c, out := newTestConsole(t)

	require.True(t, c.exec("sub temp"))
	assert.Contains(t, out.String(), "Error: syntax error")

	out.Reset()
	require.True(t, c.exec("bogus"))
	assert.Contains(t, out.String(), "Unknown command: bogus")

	require.True(t, c.exec("stats"))
	assert.Contains(t, out.String(), "State:          IDLE")

	assert.False(t, c.exec("quit"))
}
