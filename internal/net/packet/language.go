package packet

import (
	"errors"
	"fmt"
)

// ProtoMask flags a GC message type whose payload is protobuf-encoded.
const ProtoMask uint32 = 0x80000000

// ErrUnknownLanguage is returned when a message id has no registered codec.
var ErrUnknownLanguage = errors.New("unknown gc message id")

// Language is a logical GC message id with the protobuf bit stripped.
type Language uint32

// Base GC client messages.
const (
	ClientWelcome          Language = 4004
	ServerWelcome          Language = 4005
	ClientHello            Language = 4006
	ServerHello            Language = 4007
	ClientGoodbye          Language = 4008
	ClientConnectionStatus Language = 4009
	ServerConnectionStatus Language = 4010
)

// SOCache messages.
const (
	SOCreate              Language = 21
	SOUpdate              Language = 22
	SODestroy             Language = 23
	SOCacheSubscribed     Language = 24
	SOCacheUnsubscribed   Language = 25
	SOUpdateMultiple      Language = 26
	SOCacheSubscribedUpTo Language = 29
)

// Economy item requests.
const (
	Delete                        Language = 1004
	NameItem                      Language = 1006
	ItemCustomizationNotification Language = 1090
	CasketItemAdd                 Language = 1092
	CasketItemExtract             Language = 1093
	CasketItemLoadContents        Language = 1094
)

// CS-specific messages.
const (
	MatchmakingGC2ClientHello   Language = 9110
	ClientRequestPlayersProfile Language = 9127
	PlayersProfile              Language = 9128
	MatchList                   Language = 9139
	MatchListRequestRecentUser  Language = 9141
	MatchListRequestFullGame    Language = 9147
	PreviewDataBlockRequest     Language = 9156
	PreviewDataBlockResponse    Language = 9157
)

var languageNames = map[Language]string{
	ClientWelcome:                 "ClientWelcome",
	ServerWelcome:                 "ServerWelcome",
	ClientHello:                   "ClientHello",
	ServerHello:                   "ServerHello",
	ClientGoodbye:                 "ClientGoodbye",
	ClientConnectionStatus:        "ClientConnectionStatus",
	ServerConnectionStatus:        "ServerConnectionStatus",
	SOCreate:                      "SO_Create",
	SOUpdate:                      "SO_Update",
	SODestroy:                     "SO_Destroy",
	SOCacheSubscribed:             "SO_CacheSubscribed",
	SOCacheUnsubscribed:           "SO_CacheUnsubscribed",
	SOUpdateMultiple:              "SO_UpdateMultiple",
	SOCacheSubscribedUpTo:         "SO_CacheSubscribedUpToDate",
	Delete:                        "Delete",
	NameItem:                      "NameItem",
	ItemCustomizationNotification: "ItemCustomizationNotification",
	CasketItemAdd:                 "CasketItemAdd",
	CasketItemExtract:             "CasketItemExtract",
	CasketItemLoadContents:        "CasketItemLoadContents",
	MatchmakingGC2ClientHello:     "MatchmakingGC2ClientHello",
	ClientRequestPlayersProfile:   "ClientRequestPlayersProfile",
	PlayersProfile:                "PlayersProfile",
	MatchList:                     "MatchList",
	MatchListRequestRecentUser:    "MatchListRequestRecentUserGames",
	MatchListRequestFullGame:      "MatchListRequestFullGameInfo",
	PreviewDataBlockRequest:       "Client2GCEconPreviewDataBlockRequest",
	PreviewDataBlockResponse:      "Client2GCEconPreviewDataBlockResponse",
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Language(%d)", uint32(l))
}

// Split separates a raw envelope message type into its logical id and the
// protobuf flag.
func Split(msgType uint32) (Language, bool) {
	return Language(msgType &^ ProtoMask), msgType&ProtoMask != 0
}

// Join is the inverse of Split.
func Join(l Language, proto bool) uint32 {
	if proto {
		return uint32(l) | ProtoMask
	}
	return uint32(l)
}

// Notification is the request subtype carried by an item customization
// notification.
type Notification uint32

const (
	NotifyNameItem       Notification = 1006
	NotifyCasketTooFull  Notification = 1011
	NotifyCasketContents Notification = 1012
	NotifyCasketAdded    Notification = 1013
	NotifyCasketRemoved  Notification = 1014
	NotifyCasketInvFull  Notification = 1015
)

var notificationNames = map[Notification]string{
	NotifyNameItem:       "NameItem",
	NotifyCasketTooFull:  "CasketTooFull",
	NotifyCasketContents: "CasketContents",
	NotifyCasketAdded:    "CasketAdded",
	NotifyCasketRemoved:  "CasketRemoved",
	NotifyCasketInvFull:  "CasketInvFull",
}

func (n Notification) String() string {
	if name, ok := notificationNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Notification(%d)", uint32(n))
}
