package protocol

// SOTypeEconItem is the SOCache type id of CSOEconItem objects.
const SOTypeEconItem int32 = 1

// ConnectionStatus values carried by CMsgConnectionStatus.
const (
	StatusHaveSession           int32 = 0
	StatusGCGoingDown           int32 = 1
	StatusNoSession             int32 = 2
	StatusNoSessionInLogonQueue int32 = 3
	StatusNoSteam               int32 = 4
)

// SOIDOwner identifies the owner of an object cache.
type SOIDOwner struct {
	Type uint32
	ID   uint64
}

func (m *SOIDOwner) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	b = appendVarint(b, 2, m.ID)
	return b
}

func (m *SOIDOwner) Unmarshal(b []byte) error {
	*m = SOIDOwner{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Type = f.uint32()
		case 2:
			m.ID = f.u
		}
		return nil
	})
}

// SingleObject is CMsgSOSingleObject, the body of SOCreate/SOUpdate/SODestroy.
type SingleObject struct {
	TypeID     int32
	ObjectData []byte
	Version    uint64
	Owner      *SOIDOwner
}

func (m *SingleObject) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 2, uint64(m.TypeID))
	b = appendBytes(b, 3, m.ObjectData)
	b = appendFixed64(b, 4, m.Version)
	if m.Owner != nil {
		b = appendMessage(b, 5, m.Owner)
	}
	return b
}

func (m *SingleObject) Unmarshal(b []byte) error {
	*m = SingleObject{}
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			m.TypeID = f.int32()
		case 3:
			m.ObjectData = f.bytes()
		case 4:
			m.Version = f.u
		case 5:
			m.Owner = &SOIDOwner{}
			return m.Owner.Unmarshal(f.b)
		}
		return nil
	})
}

// SubObject is one entry of a multiple-objects batch.
type SubObject struct {
	TypeID     int32
	ObjectData []byte
}

func (m *SubObject) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.TypeID))
	b = appendBytes(b, 2, m.ObjectData)
	return b
}

func (m *SubObject) Unmarshal(b []byte) error {
	*m = SubObject{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.TypeID = f.int32()
		case 2:
			m.ObjectData = f.bytes()
		}
		return nil
	})
}

// MultipleObjects is CMsgSOMultipleObjects, the body of SOUpdateMultiple.
type MultipleObjects struct {
	Modified []*SubObject
	Version  uint64
	Added    []*SubObject
	Removed  []*SubObject
	Owner    *SOIDOwner
}

func (m *MultipleObjects) Marshal() []byte {
	var b []byte
	for _, o := range m.Modified {
		b = appendMessage(b, 2, o)
	}
	b = appendFixed64(b, 3, m.Version)
	for _, o := range m.Added {
		b = appendMessage(b, 4, o)
	}
	for _, o := range m.Removed {
		b = appendMessage(b, 5, o)
	}
	if m.Owner != nil {
		b = appendMessage(b, 6, m.Owner)
	}
	return b
}

func (m *MultipleObjects) Unmarshal(b []byte) error {
	*m = MultipleObjects{}
	return walk(b, func(f field) error {
		switch f.num {
		case 2, 4, 5:
			o := &SubObject{}
			if err := o.Unmarshal(f.b); err != nil {
				return err
			}
			switch f.num {
			case 2:
				m.Modified = append(m.Modified, o)
			case 4:
				m.Added = append(m.Added, o)
			default:
				m.Removed = append(m.Removed, o)
			}
		case 3:
			m.Version = f.u
		case 6:
			m.Owner = &SOIDOwner{}
			return m.Owner.Unmarshal(f.b)
		}
		return nil
	})
}

// SubscribedType groups all objects of one type in a cache snapshot.
type SubscribedType struct {
	TypeID     int32
	ObjectData [][]byte
}

func (m *SubscribedType) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.TypeID))
	b = appendRepeatedBytes(b, 2, m.ObjectData)
	return b
}

func (m *SubscribedType) Unmarshal(b []byte) error {
	*m = SubscribedType{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.TypeID = f.int32()
		case 2:
			m.ObjectData = append(m.ObjectData, f.bytes())
		}
		return nil
	})
}

// CacheSubscribed is CMsgSOCacheSubscribed, a full snapshot of one cache.
type CacheSubscribed struct {
	Objects []*SubscribedType
	Version uint64
	Owner   *SOIDOwner
}

func (m *CacheSubscribed) Marshal() []byte {
	var b []byte
	for _, o := range m.Objects {
		b = appendMessage(b, 2, o)
	}
	b = appendFixed64(b, 3, m.Version)
	if m.Owner != nil {
		b = appendMessage(b, 4, m.Owner)
	}
	return b
}

func (m *CacheSubscribed) Unmarshal(b []byte) error {
	*m = CacheSubscribed{}
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			o := &SubscribedType{}
			if err := o.Unmarshal(f.b); err != nil {
				return err
			}
			m.Objects = append(m.Objects, o)
		case 3:
			m.Version = f.u
		case 4:
			m.Owner = &SOIDOwner{}
			return m.Owner.Unmarshal(f.b)
		}
		return nil
	})
}

// ClientHello is CMsgClientHello.
type ClientHello struct {
	Version           uint32
	ClientSessionNeed uint32
	ClientLauncher    uint32
	SteamLauncher     uint32
}

func (m *ClientHello) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Version))
	b = appendVarint(b, 3, uint64(m.ClientSessionNeed))
	b = appendVarint(b, 4, uint64(m.ClientLauncher))
	b = appendVarint(b, 9, uint64(m.SteamLauncher))
	return b
}

func (m *ClientHello) Unmarshal(b []byte) error {
	*m = ClientHello{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Version = f.uint32()
		case 3:
			m.ClientSessionNeed = f.uint32()
		case 4:
			m.ClientLauncher = f.uint32()
		case 9:
			m.SteamLauncher = f.uint32()
		}
		return nil
	})
}

// ClientWelcome is CMsgClientWelcome. Only the fields the client acts on are kept.
type ClientWelcome struct {
	Version          uint32
	OutOfDateCaches  []*CacheSubscribed
	WelcomeTimestamp uint32
	Currency         uint32
	TxnCountryCode   string
}

func (m *ClientWelcome) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Version))
	for _, c := range m.OutOfDateCaches {
		b = appendMessage(b, 3, c)
	}
	b = appendVarint(b, 7, uint64(m.WelcomeTimestamp))
	b = appendVarint(b, 8, uint64(m.Currency))
	b = appendString(b, 11, m.TxnCountryCode)
	return b
}

func (m *ClientWelcome) Unmarshal(b []byte) error {
	*m = ClientWelcome{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Version = f.uint32()
		case 3:
			c := &CacheSubscribed{}
			if err := c.Unmarshal(f.b); err != nil {
				return err
			}
			m.OutOfDateCaches = append(m.OutOfDateCaches, c)
		case 7:
			m.WelcomeTimestamp = f.uint32()
		case 8:
			m.Currency = f.uint32()
		case 11:
			m.TxnCountryCode = f.string()
		}
		return nil
	})
}

// ConnectionStatus is CMsgConnectionStatus.
type ConnectionStatus struct {
	Status                int32
	ClientSessionNeed     uint32
	QueuePosition         int32
	QueueSize             int32
	WaitSeconds           int32
	EstimatedWaitSecsLeft int32
}

func (m *ConnectionStatus) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Status))
	b = appendVarint(b, 2, uint64(m.ClientSessionNeed))
	b = appendVarint(b, 3, uint64(m.QueuePosition))
	b = appendVarint(b, 4, uint64(m.QueueSize))
	b = appendVarint(b, 5, uint64(m.WaitSeconds))
	b = appendVarint(b, 6, uint64(m.EstimatedWaitSecsLeft))
	return b
}

func (m *ConnectionStatus) Unmarshal(b []byte) error {
	*m = ConnectionStatus{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Status = f.int32()
		case 2:
			m.ClientSessionNeed = f.uint32()
		case 3:
			m.QueuePosition = f.int32()
		case 4:
			m.QueueSize = f.int32()
		case 5:
			m.WaitSeconds = f.int32()
		case 6:
			m.EstimatedWaitSecsLeft = f.int32()
		}
		return nil
	})
}

// Goodbye reasons carried by CMsgClientGoodbye.
const (
	GoodbyeGCGoingDown int32 = 1
	GoodbyeNoSession   int32 = 2
)

// ClientGoodbye is CMsgClientGoodbye, sent by the GC when it drops the session.
type ClientGoodbye struct {
	Reason int32
}

func (m *ClientGoodbye) Marshal() []byte {
	return appendVarint(nil, 1, uint64(m.Reason))
}

func (m *ClientGoodbye) Unmarshal(b []byte) error {
	*m = ClientGoodbye{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Reason = f.int32()
		}
		return nil
	})
}
