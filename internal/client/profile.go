package client

import (
	"context"

	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

const (
	// levelXPBase is the experience value at the start of every level.
	levelXPBase = 327680000
	xpPerLevel  = 5000

	profileRequestLevel = 32
)

// ClientProfile returns the client user's profile from the GC's matchmaking
// hello, or nil if none has arrived yet.
func (c *Client) ClientProfile() *protocol.MatchmakingHello {
	return c.deps.Profile.Load()
}

// FetchProfile requests the profile of accountID.
func (c *Client) FetchProfile(ctx context.Context, accountID uint32) (*protocol.MatchmakingHello, error) {
	req := &protocol.ClientRequestPlayersProfile{AccountID: accountID, RequestLevel: profileRequestLevel}
	msg, err := c.request(ctx, "profile", packet.PlayersProfile,
		func(m *packet.Message) bool {
			return findProfile(m.Body.(*protocol.PlayersProfile), accountID) != nil
		},
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, packet.ClientRequestPlayersProfile, req)
		},
	)
	if err != nil {
		return nil, err
	}
	return findProfile(msg.Body.(*protocol.PlayersProfile), accountID), nil
}

func findProfile(resp *protocol.PlayersProfile, accountID uint32) *protocol.MatchmakingHello {
	for _, p := range resp.AccountProfiles {
		if p.AccountID == accountID {
			return p
		}
	}
	return nil
}

// PercentageOfCurrentLevel returns how far p is into its current level.
func PercentageOfCurrentLevel(p *protocol.MatchmakingHello) int {
	xp := int64(p.PlayerCurXP) - levelXPBase
	if xp < 0 {
		xp = 0
	}
	return int(xp / xpPerLevel)
}
