package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralTreeDepthCap(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	// Chain: root <- b <- c <- d <- e, four levels below root.
	root := seedUser(t, db, "Root", "5-bosqich", nil)
	bUser := seedUser(t, db, "B", "4-bosqich", uintPtr(root.ID))
	cUser := seedUser(t, db, "C", "3-bosqich", uintPtr(bUser.ID))
	dUser := seedUser(t, db, "D", "2-bosqich", uintPtr(cUser.ID))
	seedUser(t, db, "E", "1-bosqich", uintPtr(dUser.ID))

	nodes, err := engine.ReferralTree(root.ID, 3)
	require.NoError(t, err)

	require.Len(t, nodes, 1)
	assert.Equal(t, "B", nodes[0].User.FullName)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "C", nodes[0].Children[0].User.FullName)
	require.Len(t, nodes[0].Children[0].Children, 1)
	assert.Equal(t, "D", nodes[0].Children[0].Children[0].User.FullName)
	// E sits below the requested depth and is cut off.
	assert.Empty(t, nodes[0].Children[0].Children[0].Children)
}

func TestReferralTreeBranching(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	root := seedUser(t, db, "Root", "5-bosqich", nil)
	left := seedUser(t, db, "Left", "2-bosqich", uintPtr(root.ID))
	seedUser(t, db, "Right", "2-bosqich", uintPtr(root.ID))
	seedUser(t, db, "Leaf", "1-bosqich", uintPtr(left.ID))

	nodes, err := engine.ReferralTree(root.ID, 0) // 0 means full capped depth
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	byName := map[string]TreeNode{}
	for _, n := range nodes {
		byName[n.User.FullName] = n
	}
	assert.Len(t, byName["Left"].Children, 1)
	assert.Empty(t, byName["Right"].Children)
}

func TestReferralTreeEmpty(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	solo := seedUser(t, db, "Solo", "1-bosqich", nil)

	nodes, err := engine.ReferralTree(solo.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestNetworkSizeCountsAllLevels(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	root := seedUser(t, db, "Root", "5-bosqich", nil)
	a := seedUser(t, db, "A", "2-bosqich", uintPtr(root.ID))
	seedUser(t, db, "B", "2-bosqich", uintPtr(root.ID))
	seedUser(t, db, "A1", "1-bosqich", uintPtr(a.ID))

	size, err := engine.NetworkSize(root.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestNetworkStats(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	root := seedUser(t, db, "Root", "5-bosqich", nil)
	a := seedUser(t, db, "A", "2-bosqich", uintPtr(root.ID))
	pending := seedUser(t, db, "P", "1-bosqich", uintPtr(root.ID))
	require.NoError(t, db.Model(pending).Update("is_confirmed", false).Error)
	seedUser(t, db, "A1", "1-bosqich", uintPtr(a.ID))

	stats, err := engine.NetworkStatsFor(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Direct)
	assert.Equal(t, int64(1), stats.Confirmed)
	assert.Equal(t, 3, stats.Network)
}
