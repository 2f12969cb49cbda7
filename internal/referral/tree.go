package referral

import (
	"fmt"

	"kursbot/internal/models"
)

// The invited_by graph is walked iteratively, one level-batched query per
// depth, never by recursing row by row. Deeper subtrees are cut off.
const maxWalkDepth = 10

// TreeNode is one user in a referral subtree.
type TreeNode struct {
	User     models.User `json:"user"`
	Children []TreeNode  `json:"children,omitempty"`
}

// NetworkStats summarizes a user's referral network.
type NetworkStats struct {
	Direct    int64 `json:"direct"`
	Confirmed int64 `json:"confirmed"`
	Network   int   `json:"network"`
}

// ReferralTree returns the user's invitees down to the given depth
// (clamped to maxWalkDepth).
func (e *Engine) ReferralTree(userID uint, depth int) ([]TreeNode, error) {
	if depth <= 0 || depth > maxWalkDepth {
		depth = maxWalkDepth
	}

	frontier := []uint{userID}
	children := make(map[uint][]models.User)
	for d := 0; d < depth && len(frontier) > 0; d++ {
		batch, err := e.users.FindInvitedByAny(frontier)
		if err != nil {
			return nil, fmt.Errorf("walk referral tree of user %d: %w", userID, err)
		}
		frontier = frontier[:0]
		for _, u := range batch {
			children[*u.InvitedByID] = append(children[*u.InvitedByID], u)
			frontier = append(frontier, u.ID)
		}
	}

	return buildSubtree(userID, children), nil
}

func buildSubtree(parentID uint, children map[uint][]models.User) []TreeNode {
	var nodes []TreeNode
	for _, u := range children[parentID] {
		nodes = append(nodes, TreeNode{
			User:     u,
			Children: buildSubtree(u.ID, children),
		})
	}
	return nodes
}

// NetworkSize counts every user reachable through invited_by links,
// excluding the root, down to maxWalkDepth.
func (e *Engine) NetworkSize(userID uint) (int, error) {
	total := 0
	frontier := []uint{userID}
	for d := 0; d < maxWalkDepth && len(frontier) > 0; d++ {
		batch, err := e.users.FindInvitedByAny(frontier)
		if err != nil {
			return 0, fmt.Errorf("count referral network of user %d: %w", userID, err)
		}
		total += len(batch)
		frontier = frontier[:0]
		for _, u := range batch {
			frontier = append(frontier, u.ID)
		}
	}
	return total, nil
}

// NetworkStatsFor bundles the direct, confirmed and network counts shown
// on the team screen.
func (e *Engine) NetworkStatsFor(userID uint) (*NetworkStats, error) {
	direct, err := e.users.CountDirectInvitees(userID)
	if err != nil {
		return nil, fmt.Errorf("count invitees of user %d: %w", userID, err)
	}
	confirmed, err := e.users.CountConfirmedInvitees(userID)
	if err != nil {
		return nil, fmt.Errorf("count confirmed invitees of user %d: %w", userID, err)
	}
	network, err := e.NetworkSize(userID)
	if err != nil {
		return nil, err
	}
	return &NetworkStats{Direct: direct, Confirmed: confirmed, Network: network}, nil
}
