package protocol

import (
	"math"
	"net/netip"
	"time"
)

// PreviewDataBlockRequest is CMsgGCCStrike15_v2_Client2GCEconPreviewDataBlockRequest.
// S is the owner steam id for inventory links, M the listing id for market links.
type PreviewDataBlockRequest struct {
	S uint64
	A uint64
	D uint64
	M uint64
}

func (m *PreviewDataBlockRequest) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.S)
	b = appendVarint(b, 2, m.A)
	b = appendVarint(b, 3, m.D)
	b = appendVarint(b, 4, m.M)
	return b
}

func (m *PreviewDataBlockRequest) Unmarshal(b []byte) error {
	*m = PreviewDataBlockRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.S = f.u
		case 2:
			m.A = f.u
		case 3:
			m.D = f.u
		case 4:
			m.M = f.u
		}
		return nil
	})
}

// PreviewSticker is one sticker of CEconItemPreviewDataBlock.
type PreviewSticker struct {
	Slot      uint32
	StickerID uint32
	Wear      float32
	Scale     float32
	Rotation  float32
	TintID    uint32
}

func (m *PreviewSticker) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Slot))
	b = appendVarint(b, 2, uint64(m.StickerID))
	b = appendFloat(b, 3, m.Wear)
	b = appendFloat(b, 4, m.Scale)
	b = appendFloat(b, 5, m.Rotation)
	b = appendVarint(b, 6, uint64(m.TintID))
	return b
}

func (m *PreviewSticker) Unmarshal(b []byte) error {
	*m = PreviewSticker{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Slot = f.uint32()
		case 2:
			m.StickerID = f.uint32()
		case 3:
			m.Wear = f.float()
		case 4:
			m.Scale = f.float()
		case 5:
			m.Rotation = f.float()
		case 6:
			m.TintID = f.uint32()
		}
		return nil
	})
}

// PreviewDataBlock is CEconItemPreviewDataBlock. PaintWear holds the raw bits
// of a float32; use Wear to read it.
type PreviewDataBlock struct {
	AccountID          uint32
	ItemID             uint64
	DefIndex           uint32
	PaintIndex         uint32
	Rarity             uint32
	Quality            uint32
	PaintWear          uint32
	PaintSeed          uint32
	KillEaterScoreType uint32
	KillEaterValue     uint32
	CustomName         string
	Stickers           []*PreviewSticker
	Inventory          uint32
	Origin             uint32
	QuestID            uint32
	DropReason         uint32
	MusicIndex         uint32
	EntIndex           int32
}

// Wear reinterprets the packed paint wear bits.
func (m *PreviewDataBlock) Wear() float32 {
	return math.Float32frombits(m.PaintWear)
}

func (m *PreviewDataBlock) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.AccountID))
	b = appendVarint(b, 2, m.ItemID)
	b = appendVarint(b, 3, uint64(m.DefIndex))
	b = appendVarint(b, 4, uint64(m.PaintIndex))
	b = appendVarint(b, 5, uint64(m.Rarity))
	b = appendVarint(b, 6, uint64(m.Quality))
	b = appendVarint(b, 7, uint64(m.PaintWear))
	b = appendVarint(b, 8, uint64(m.PaintSeed))
	b = appendVarint(b, 9, uint64(m.KillEaterScoreType))
	b = appendVarint(b, 10, uint64(m.KillEaterValue))
	b = appendString(b, 11, m.CustomName)
	for _, s := range m.Stickers {
		b = appendMessage(b, 12, s)
	}
	b = appendVarint(b, 13, uint64(m.Inventory))
	b = appendVarint(b, 14, uint64(m.Origin))
	b = appendVarint(b, 15, uint64(m.QuestID))
	b = appendVarint(b, 16, uint64(m.DropReason))
	b = appendVarint(b, 17, uint64(m.MusicIndex))
	b = appendVarint(b, 18, uint64(m.EntIndex))
	return b
}

func (m *PreviewDataBlock) Unmarshal(b []byte) error {
	*m = PreviewDataBlock{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.AccountID = f.uint32()
		case 2:
			m.ItemID = f.u
		case 3:
			m.DefIndex = f.uint32()
		case 4:
			m.PaintIndex = f.uint32()
		case 5:
			m.Rarity = f.uint32()
		case 6:
			m.Quality = f.uint32()
		case 7:
			m.PaintWear = f.uint32()
		case 8:
			m.PaintSeed = f.uint32()
		case 9:
			m.KillEaterScoreType = f.uint32()
		case 10:
			m.KillEaterValue = f.uint32()
		case 11:
			m.CustomName = f.string()
		case 12:
			s := &PreviewSticker{}
			if err := s.Unmarshal(f.b); err != nil {
				return err
			}
			m.Stickers = append(m.Stickers, s)
		case 13:
			m.Inventory = f.uint32()
		case 14:
			m.Origin = f.uint32()
		case 15:
			m.QuestID = f.uint32()
		case 16:
			m.DropReason = f.uint32()
		case 17:
			m.MusicIndex = f.uint32()
		case 18:
			m.EntIndex = f.int32()
		}
		return nil
	})
}

// PreviewDataBlockResponse is the GC's answer to an inspect request.
type PreviewDataBlockResponse struct {
	ItemInfo *PreviewDataBlock
}

func (m *PreviewDataBlockResponse) Marshal() []byte {
	if m.ItemInfo == nil {
		return nil
	}
	return appendMessage(nil, 1, m.ItemInfo)
}

func (m *PreviewDataBlockResponse) Unmarshal(b []byte) error {
	*m = PreviewDataBlockResponse{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.ItemInfo = &PreviewDataBlock{}
			return m.ItemInfo.Unmarshal(f.b)
		}
		return nil
	})
}

// MatchmakingHello is the subset of CMsgGCCStrike15_v2_MatchmakingGC2ClientHello
// that describes a player's account standing. It doubles as the per-account
// entry of a players-profile response.
type MatchmakingHello struct {
	AccountID          uint32
	PenaltySeconds     uint32
	PenaltyReason      uint32
	VacBanned          int32
	PlayerLevel        int32
	PlayerCurXP        int32
	PlayerXPBonusFlags int32
}

func (m *MatchmakingHello) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.AccountID))
	b = appendVarint(b, 4, uint64(m.PenaltySeconds))
	b = appendVarint(b, 5, uint64(m.PenaltyReason))
	b = appendVarint(b, 6, uint64(m.VacBanned))
	b = appendVarint(b, 17, uint64(m.PlayerLevel))
	b = appendVarint(b, 18, uint64(m.PlayerCurXP))
	b = appendVarint(b, 19, uint64(m.PlayerXPBonusFlags))
	return b
}

func (m *MatchmakingHello) Unmarshal(b []byte) error {
	*m = MatchmakingHello{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.AccountID = f.uint32()
		case 4:
			m.PenaltySeconds = f.uint32()
		case 5:
			m.PenaltyReason = f.uint32()
		case 6:
			m.VacBanned = f.int32()
		case 17:
			m.PlayerLevel = f.int32()
		case 18:
			m.PlayerCurXP = f.int32()
		case 19:
			m.PlayerXPBonusFlags = f.int32()
		}
		return nil
	})
}

// ClientRequestPlayersProfile asks the GC for another account's profile.
type ClientRequestPlayersProfile struct {
	AccountID    uint32
	RequestLevel uint32
}

func (m *ClientRequestPlayersProfile) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 2, uint64(m.AccountID))
	b = appendVarint(b, 3, uint64(m.RequestLevel))
	return b
}

func (m *ClientRequestPlayersProfile) Unmarshal(b []byte) error {
	*m = ClientRequestPlayersProfile{}
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			m.AccountID = f.uint32()
		case 3:
			m.RequestLevel = f.uint32()
		}
		return nil
	})
}

// PlayersProfile is CMsgGCCStrike15_v2_PlayersProfile.
type PlayersProfile struct {
	RequestID       uint32
	AccountProfiles []*MatchmakingHello
}

func (m *PlayersProfile) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.RequestID))
	for _, p := range m.AccountProfiles {
		b = appendMessage(b, 2, p)
	}
	return b
}

func (m *PlayersProfile) Unmarshal(b []byte) error {
	*m = PlayersProfile{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.RequestID = f.uint32()
		case 2:
			p := &MatchmakingHello{}
			if err := p.Unmarshal(f.b); err != nil {
				return err
			}
			m.AccountProfiles = append(m.AccountProfiles, p)
		}
		return nil
	})
}

// MatchListRequestRecentUserGames asks for an account's recent matches.
type MatchListRequestRecentUserGames struct {
	AccountID uint32
}

func (m *MatchListRequestRecentUserGames) Marshal() []byte {
	return appendVarint(nil, 1, uint64(m.AccountID))
}

func (m *MatchListRequestRecentUserGames) Unmarshal(b []byte) error {
	*m = MatchListRequestRecentUserGames{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.AccountID = f.uint32()
		}
		return nil
	})
}

// MatchListRequestFullGameInfo asks for one match by the three ids a
// match share code carries.
type MatchListRequestFullGameInfo struct {
	MatchID   uint64
	OutcomeID uint64
	Token     uint32
}

func (m *MatchListRequestFullGameInfo) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.MatchID)
	b = appendVarint(b, 2, m.OutcomeID)
	b = appendVarint(b, 3, uint64(m.Token))
	return b
}

func (m *MatchListRequestFullGameInfo) Unmarshal(b []byte) error {
	*m = MatchListRequestFullGameInfo{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.MatchID = f.u
		case 2:
			m.OutcomeID = f.u
		case 3:
			m.Token = f.uint32()
		}
		return nil
	})
}

// MatchList is CMsgGCCStrike15_v2_MatchList. Streams and tournament info
// are not decoded.
type MatchList struct {
	RequestID  uint32
	AccountID  uint32
	ServerTime uint32
	Matches    []*MatchInfo
}

func (m *MatchList) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.RequestID))
	b = appendVarint(b, 2, uint64(m.AccountID))
	b = appendVarint(b, 3, uint64(m.ServerTime))
	for _, mi := range m.Matches {
		b = appendMessage(b, 4, mi)
	}
	return b
}

func (m *MatchList) Unmarshal(b []byte) error {
	*m = MatchList{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.RequestID = f.uint32()
		case 2:
			m.AccountID = f.uint32()
		case 3:
			m.ServerTime = f.uint32()
		case 4:
			mi := &MatchInfo{}
			if err := mi.Unmarshal(f.b); err != nil {
				return err
			}
			m.Matches = append(m.Matches, mi)
		}
		return nil
	})
}

// Match returns the entry with matchID, or nil.
func (m *MatchList) Match(matchID uint64) *MatchInfo {
	for _, mi := range m.Matches {
		if mi.MatchID == matchID {
			return mi
		}
	}
	return nil
}

// MatchInfo is CDataGCCStrike15_v2_MatchInfo.
type MatchInfo struct {
	MatchID    uint64
	MatchTime  uint32
	Watchable  *WatchableMatchInfo
	RoundStats []*RoundStats
}

func (m *MatchInfo) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.MatchID)
	b = appendVarint(b, 2, uint64(m.MatchTime))
	if m.Watchable != nil {
		b = appendMessage(b, 3, m.Watchable)
	}
	for _, r := range m.RoundStats {
		b = appendMessage(b, 5, r)
	}
	return b
}

func (m *MatchInfo) Unmarshal(b []byte) error {
	*m = MatchInfo{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.MatchID = f.u
		case 2:
			m.MatchTime = f.uint32()
		case 3:
			m.Watchable = &WatchableMatchInfo{}
			return m.Watchable.Unmarshal(f.b)
		case 5:
			r := &RoundStats{}
			if err := r.Unmarshal(f.b); err != nil {
				return err
			}
			m.RoundStats = append(m.RoundStats, r)
		}
		return nil
	})
}

// Played is when the match was played.
func (m *MatchInfo) Played() time.Time {
	return time.Unix(int64(m.MatchTime), 0).UTC()
}

// Final returns the last round's stats, which carry the match result, or
// nil when the GC sent none.
func (m *MatchInfo) Final() *RoundStats {
	if len(m.RoundStats) == 0 {
		return nil
	}
	return m.RoundStats[len(m.RoundStats)-1]
}

// WatchableMatchInfo describes where a match was hosted and how to watch it.
type WatchableMatchInfo struct {
	ServerIP      uint32
	TVPort        uint32
	TVSpectators  uint32
	TVTime        uint32
	GameType      uint32
	GameMapGroup  string
	GameMap       string
	ServerID      uint64
	MatchID       uint64
	ReservationID uint64
}

func (m *WatchableMatchInfo) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.ServerIP))
	b = appendVarint(b, 2, uint64(m.TVPort))
	b = appendVarint(b, 3, uint64(m.TVSpectators))
	b = appendVarint(b, 4, uint64(m.TVTime))
	b = appendVarint(b, 8, uint64(m.GameType))
	b = appendString(b, 9, m.GameMapGroup)
	b = appendString(b, 10, m.GameMap)
	b = appendVarint(b, 11, m.ServerID)
	b = appendVarint(b, 12, m.MatchID)
	b = appendVarint(b, 13, m.ReservationID)
	return b
}

func (m *WatchableMatchInfo) Unmarshal(b []byte) error {
	*m = WatchableMatchInfo{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ServerIP = f.uint32()
		case 2:
			m.TVPort = f.uint32()
		case 3:
			m.TVSpectators = f.uint32()
		case 4:
			m.TVTime = f.uint32()
		case 8:
			m.GameType = f.uint32()
		case 9:
			m.GameMapGroup = f.string()
		case 10:
			m.GameMap = f.string()
		case 11:
			m.ServerID = f.u
		case 12:
			m.MatchID = f.u
		case 13:
			m.ReservationID = f.u
		}
		return nil
	})
}

// ServerAddr is the game server's address; the GC sends the IPv4 address
// as a host-order integer.
func (m *WatchableMatchInfo) ServerAddr() netip.AddrPort {
	ip := m.ServerIP
	addr := netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)})
	return netip.AddrPortFrom(addr, uint16(m.TVPort))
}

// RoundStats is the subset of CMsgGCCStrike15_v2_MatchmakingServerRoundStats
// a match summary needs. Per-player slices are indexed by scoreboard slot.
type RoundStats struct {
	ReservationID uint64
	Map           string
	Round         int32
	Kills         []int32
	Assists       []int32
	Deaths        []int32
	Scores        []int32
	Pings         []int32
	RoundResult   int32
	MatchResult   int32
	TeamScores    []int32
	MatchDuration int32
	MVPs          []int32
}

func (m *RoundStats) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.ReservationID)
	b = appendString(b, 3, m.Map)
	b = appendVarint(b, 4, uint64(m.Round))
	b = appendPackedInt32(b, 5, m.Kills)
	b = appendPackedInt32(b, 6, m.Assists)
	b = appendPackedInt32(b, 7, m.Deaths)
	b = appendPackedInt32(b, 8, m.Scores)
	b = appendPackedInt32(b, 9, m.Pings)
	b = appendVarint(b, 10, uint64(m.RoundResult))
	b = appendVarint(b, 11, uint64(m.MatchResult))
	b = appendPackedInt32(b, 12, m.TeamScores)
	b = appendVarint(b, 15, uint64(m.MatchDuration))
	b = appendPackedInt32(b, 21, m.MVPs)
	return b
}

func (m *RoundStats) Unmarshal(b []byte) error {
	*m = RoundStats{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ReservationID = f.u
		case 3:
			m.Map = f.string()
		case 4:
			m.Round = f.int32()
		case 5:
			m.Kills = f.int32s(m.Kills)
		case 6:
			m.Assists = f.int32s(m.Assists)
		case 7:
			m.Deaths = f.int32s(m.Deaths)
		case 8:
			m.Scores = f.int32s(m.Scores)
		case 9:
			m.Pings = f.int32s(m.Pings)
		case 10:
			m.RoundResult = f.int32()
		case 11:
			m.MatchResult = f.int32()
		case 12:
			m.TeamScores = f.int32s(m.TeamScores)
		case 15:
			m.MatchDuration = f.int32()
		case 21:
			m.MVPs = f.int32s(m.MVPs)
		}
		return nil
	})
}
