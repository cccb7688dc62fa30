package persist

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
)

// Kind names a journaled backpack mutation.
type Kind string

const (
	KindReceive Kind = "item_receive"
	KindUpdate  Kind = "item_update"
	KindRemove  Kind = "item_remove"
)

// Entry is one journaled backpack mutation. Before and After hold JSON
// snapshots of the item; either may be empty.
type Entry struct {
	ID        string
	At        time.Time
	SessionID string
	Kind      Kind
	AssetID   uint64
	DefIndex  uint32
	Name      string
	CasketID  uint64
	Before    json.RawMessage
	After     json.RawMessage
}

// Journal appends item events to the item_events table.
type Journal struct {
	db  *DB
	log *zap.Logger

	mu      sync.Mutex
	entropy io.Reader
}

func NewJournal(db *DB, log *zap.Logger) *Journal {
	return &Journal{
		db:      db,
		log:     log.Named("journal"),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (j *Journal) newID(at time.Time) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), j.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Append stores e, assigning its ID and timestamp when unset.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		id, err := j.newID(e.At)
		if err != nil {
			return fmt.Errorf("journal id: %w", err)
		}
		e.ID = id
	}

	a := j.db.arg
	q := fmt.Sprintf(`INSERT INTO item_events
		(id, at_ms, session_id, kind, asset_id, def_index, name, casket_id, before_json, after_json)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		a(1), a(2), a(3), a(4), a(5), a(6), a(7), a(8), a(9), a(10))
	if _, err := j.db.SQL.ExecContext(ctx, q,
		e.ID, e.At.UnixMilli(), e.SessionID, string(e.Kind),
		int64(e.AssetID), int64(e.DefIndex), e.Name, int64(e.CasketID),
		nullJSON(e.Before), nullJSON(e.After),
	); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	q := fmt.Sprintf(`SELECT id, at_ms, session_id, kind, asset_id, def_index, name, casket_id, before_json, after_json
		FROM item_events ORDER BY id DESC LIMIT %s`, j.db.arg(1))
	rows, err := j.db.SQL.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                        Entry
			atMS, asset, def, casket int64
			kind                     string
			before, after            sql.NullString
		)
		if err := rows.Scan(&e.ID, &atMS, &e.SessionID, &kind, &asset, &def, &e.Name, &casket, &before, &after); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.At = time.UnixMilli(atMS)
		e.Kind = Kind(kind)
		e.AssetID = uint64(asset)
		e.DefIndex = uint32(def)
		e.CasketID = uint64(casket)
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attach journals every backpack mutation published on bus. Failures are
// logged; the session is never blocked on the database for long.
func (j *Journal) Attach(bus *event.Bus, sessionID string) {
	record := func(kind Kind, before, after *backpack.Item) {
		e := &Entry{SessionID: sessionID, Kind: kind}
		ref := after
		if ref == nil {
			ref = before
		}
		e.AssetID, e.DefIndex, e.Name, e.CasketID = ref.AssetID, ref.DefIndex, ref.Name, ref.CasketID
		e.Before = snapshot(before)
		e.After = snapshot(after)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.Append(ctx, e); err != nil {
			j.log.Error("journal append failed", zap.String("kind", string(kind)),
				zap.Uint64("asset_id", e.AssetID), zap.Error(err))
		}
	}

	event.Subscribe(bus, func(e event.ItemReceive) { record(KindReceive, nil, e.Item) })
	event.Subscribe(bus, func(e event.ItemUpdate) { record(KindUpdate, e.Before, e.After) })
	event.Subscribe(bus, func(e event.ItemRemove) { record(KindRemove, e.Item, nil) })
}

func snapshot(it *backpack.Item) json.RawMessage {
	if it == nil {
		return nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil
	}
	return b
}

func nullJSON(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
