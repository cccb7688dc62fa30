package client

import (
	"context"

	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// FetchMatch requests the full game info of one match, identified by the
// ids a match share code decodes to.
func (c *Client) FetchMatch(ctx context.Context, matchID, outcomeID uint64, token uint32) (*protocol.MatchInfo, error) {
	req := &protocol.MatchListRequestFullGameInfo{MatchID: matchID, OutcomeID: outcomeID, Token: token}
	msg, err := c.request(ctx, "match", packet.MatchList,
		func(m *packet.Message) bool {
			return m.Body.(*protocol.MatchList).Match(matchID) != nil
		},
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, packet.MatchListRequestFullGame, req)
		},
	)
	if err != nil {
		return nil, err
	}
	return msg.Body.(*protocol.MatchList).Match(matchID), nil
}

// RecentMatches requests the recent matches of accountID. The list may be
// empty.
func (c *Client) RecentMatches(ctx context.Context, accountID uint32) (*protocol.MatchList, error) {
	req := &protocol.MatchListRequestRecentUserGames{AccountID: accountID}
	msg, err := c.request(ctx, "recent_matches", packet.MatchList,
		func(m *packet.Message) bool {
			return m.Body.(*protocol.MatchList).AccountID == accountID
		},
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, packet.MatchListRequestRecentUser, req)
		},
	)
	if err != nil {
		return nil, err
	}
	return msg.Body.(*protocol.MatchList), nil
}
