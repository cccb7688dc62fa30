package event

import (
	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// Session transitions.

type GCConnect struct {
	SessionID string
}

type GCDisconnect struct {
	SessionID string
	Reason    string
}

type GCReady struct {
	SessionID string
	Items     int
}

// Backpack mutations. Items are snapshots owned by the receiver.

type ItemReceive struct {
	Item *backpack.Item
}

type ItemUpdate struct {
	Before *backpack.Item
	After  *backpack.Item
}

type ItemRemove struct {
	Item *backpack.Item
}

// ItemCustomization passes an item customization notification through unchanged.
type ItemCustomization struct {
	Notification *protocol.ItemCustomizationNotification
}

// InspectItemInfo carries the result of an inspect request.
type InspectItemInfo struct {
	Item *backpack.Inspected
}

// ProfileUpdate carries the client user's matchmaking hello.
type ProfileUpdate struct {
	Profile *protocol.MatchmakingHello
}
