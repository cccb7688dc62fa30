package handler

import (
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/attribute"
	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

type mergeMode int

const (
	mergeCreate mergeMode = iota
	mergeUpdate
	mergeBootstrap
)

type outcomeKind int

const (
	outcomeNone    outcomeKind = iota // casket-contained or skipped
	outcomeReceive                    // new top-level entry
	outcomeUpdate                     // existing entry changed
	outcomeRemove                     // entry destroyed
	outcomeMissing                    // update for an asset we have never seen
)

type outcome struct {
	kind   outcomeKind
	before *backpack.Item
	after  *backpack.Item
}

// HandleCreate merges one new SOCache object.
func HandleCreate(sess *net.Session, msg *protocol.SingleObject, deps *Deps) {
	if !isEconItem(sess, msg.TypeID) {
		return
	}
	applyObject(sess, msg.ObjectData, mergeCreate, deps)
}

// HandleUpdate merges a full replacement of one SOCache object. An update
// for an asset that is neither in the store nor carries casket markers is
// handed to the refresher.
func HandleUpdate(sess *net.Session, msg *protocol.SingleObject, deps *Deps) {
	if !isEconItem(sess, msg.TypeID) {
		return
	}
	applyObject(sess, msg.ObjectData, mergeUpdate, deps)
}

// HandleDestroy removes one SOCache object.
func HandleDestroy(sess *net.Session, msg *protocol.SingleObject, deps *Deps) {
	if !isEconItem(sess, msg.TypeID) {
		return
	}
	w, ok := decodeItem(sess, msg.ObjectData)
	if !ok {
		return
	}
	destroyItem(sess, backpack.FromEconItem(w), deps)
}

// HandleUpdateMultiple applies a batch in order: modified entries as updates,
// added entries as creates and removed entries as destroys. Each entry is
// tagged by its own type id.
func HandleUpdateMultiple(sess *net.Session, msg *protocol.MultipleObjects, deps *Deps) {
	for _, o := range msg.Modified {
		if isEconItem(sess, o.TypeID) {
			applyObject(sess, o.ObjectData, mergeUpdate, deps)
		}
	}
	for _, o := range msg.Added {
		if isEconItem(sess, o.TypeID) {
			applyObject(sess, o.ObjectData, mergeCreate, deps)
		}
	}
	for _, o := range msg.Removed {
		if !isEconItem(sess, o.TypeID) {
			continue
		}
		if w, ok := decodeItem(sess, o.ObjectData); ok {
			destroyItem(sess, backpack.FromEconItem(w), deps)
		}
	}
}

// HandleCacheSubscribed merges a standalone cache snapshot with bootstrap
// placement rules. Events are only emitted once the session is ready.
func HandleCacheSubscribed(sess *net.Session, msg *protocol.CacheSubscribed, deps *Deps) {
	mergeCache(sess, msg, deps, sess.State() == packet.StateReady)
}

func mergeCache(sess *net.Session, c *protocol.CacheSubscribed, deps *Deps, emit bool) {
	var outs []outcome
	_ = deps.Store.Update(func(tx *backpack.Tx) error {
		for _, raw := range econObjects(c) {
			w, ok := decodeItem(sess, raw)
			if !ok {
				continue
			}
			outs = append(outs, mergeItem(sess, tx, backpack.FromEconItem(w), mergeBootstrap, deps))
		}
		checkCasketLinks(sess, tx, deps)
		return nil
	})
	updateGauges(deps)
	if emit {
		for _, o := range outs {
			emitOutcome(sess, o)
		}
	}
}

func applyObject(sess *net.Session, raw []byte, mode mergeMode, deps *Deps) {
	w, ok := decodeItem(sess, raw)
	if !ok {
		return
	}
	it := backpack.FromEconItem(w)
	var o outcome
	_ = deps.Store.Update(func(tx *backpack.Tx) error {
		o = mergeItem(sess, tx, it, mode, deps)
		return nil
	})
	if o.kind == outcomeMissing {
		deps.refresher.enqueue(sess, it)
		return
	}
	updateGauges(deps)
	emitOutcome(sess, o)
}

// mergeItem folds one incoming record into the store. It must run inside
// Store.Update; in is owned by the callee afterwards.
func mergeItem(sess *net.Session, tx *backpack.Tx, in *backpack.Item, mode mergeMode, deps *Deps) outcome {
	v, err := attribute.Decode(in.Attributes)
	if err != nil {
		sess.Log().Warn("item attributes partially decoded",
			zap.Uint64("asset_id", in.AssetID), zap.Error(err))
	}
	bootstrap := mode == mergeBootstrap

	if cur := tx.Get(in.AssetID); cur != nil {
		before := cur.Clone()
		backpack.Merge(cur, in)
		applyAttributes(sess, cur, v, bootstrap, deps)
		annotate(cur, deps)
		checkCasketLink(sess, tx, cur)
		return outcome{kind: outcomeUpdate, before: before, after: cur.Clone()}
	}

	contained := attribute.HasCasketMarkers(in.Attributes)

	if prev, ok := deps.Store.Caskets.Get(in.AssetID); ok {
		backpack.Merge(prev, in)
		applyAttributes(sess, prev, v, bootstrap, deps)
		annotate(prev, deps)
		if contained {
			deps.Store.Caskets.Put(prev)
			return outcome{}
		}
		// Extracted from its storage unit.
		deps.Store.Caskets.Remove(in.AssetID)
		tx.Upsert(prev)
		sess.Log().Debug("item left storage unit", zap.Uint64("asset_id", prev.AssetID))
		return outcome{kind: outcomeReceive, after: prev.Clone()}
	}

	applyAttributes(sess, in, v, bootstrap, deps)
	annotate(in, deps)

	if contained {
		deps.Store.Caskets.Put(in)
		sess.Log().Debug("item filed under storage unit",
			zap.Uint64("asset_id", in.AssetID), zap.Uint64("casket_id", in.CasketID))
		return outcome{}
	}
	if mode == mergeUpdate {
		return outcome{kind: outcomeMissing}
	}
	tx.Upsert(in)
	checkCasketLink(sess, tx, in)
	return outcome{kind: outcomeReceive, after: in.Clone()}
}

// applyAttributes rebuilds the derived facets of it from v, then those of
// each nested interior item from its own attribute list.
func applyAttributes(sess *net.Session, it *backpack.Item, v attribute.Values, bootstrap bool, deps *Deps) {
	it.ApplyAttributes(v, bootstrap)
	for in := it.Interior; in != nil; in = in.Interior {
		iv, err := attribute.Decode(in.Attributes)
		if err != nil {
			sess.Log().Warn("interior item attributes partially decoded",
				zap.Uint64("asset_id", it.AssetID), zap.Uint64("interior_id", in.AssetID), zap.Error(err))
		}
		in.ApplyAttributes(iv, bootstrap)
		annotate(in, deps)
	}
}

func destroyItem(sess *net.Session, in *backpack.Item, deps *Deps) {
	var removed *backpack.Item
	_ = deps.Store.Update(func(tx *backpack.Tx) error {
		cur := tx.Get(in.AssetID)
		if cur == nil {
			if _, ok := deps.Store.Caskets.Remove(in.AssetID); ok {
				sess.Log().Debug("contained item destroyed", zap.Uint64("asset_id", in.AssetID))
				return nil
			}
			sess.Log().Debug("destroy for unknown item", zap.Uint64("asset_id", in.AssetID))
			return nil
		}
		v, err := attribute.Decode(in.Attributes)
		if err != nil {
			sess.Log().Warn("item attributes partially decoded",
				zap.Uint64("asset_id", in.AssetID), zap.Error(err))
		}
		backpack.Merge(cur, in)
		applyAttributes(sess, cur, v, false, deps)
		annotate(cur, deps)
		tx.Remove(in.AssetID)
		removed = cur
		return nil
	})
	updateGauges(deps)
	if removed != nil {
		emitOutcome(sess, outcome{kind: outcomeRemove, before: removed})
	}
}

func emitOutcome(sess *net.Session, o outcome) {
	switch o.kind {
	case outcomeReceive:
		metrics.ItemEvents.WithLabelValues("receive").Inc()
		event.Emit(sess.Bus(), event.ItemReceive{Item: o.after})
	case outcomeUpdate:
		metrics.ItemEvents.WithLabelValues("update").Inc()
		event.Emit(sess.Bus(), event.ItemUpdate{Before: o.before, After: o.after})
	case outcomeRemove:
		metrics.ItemEvents.WithLabelValues("remove").Inc()
		event.Emit(sess.Bus(), event.ItemRemove{Item: o.before})
	}
}

// annotate fills the display name from the item catalog when the community
// inventory has not provided one.
func annotate(it *backpack.Item, deps *Deps) {
	if it.Name != "" || deps.Items == nil {
		return
	}
	var paint uint32
	if it.Paint != nil {
		paint = uint32(it.Paint.Index)
	}
	it.Name = deps.Items.DisplayName(it.DefIndex, paint)
}

// checkCasketLink logs an item that claims to live in a known item which is
// not a storage unit. The entry is left as is.
func checkCasketLink(sess *net.Session, tx *backpack.Tx, it *backpack.Item) {
	if !it.InCasket() {
		return
	}
	if target := tx.Get(it.CasketID); target != nil && !target.IsCasket() {
		metrics.Anomalies.WithLabelValues("casket_link").Inc()
		sess.Log().Error("item linked to non-casket",
			zap.Uint64("asset_id", it.AssetID),
			zap.Uint64("casket_id", it.CasketID),
			zap.Uint32("target_def_index", target.DefIndex),
		)
	}
}

// checkCasketLinks verifies the store and the side index after a snapshot,
// when storage units may have arrived after their contents.
func checkCasketLinks(sess *net.Session, tx *backpack.Tx, deps *Deps) {
	for _, it := range tx.Items() {
		checkCasketLink(sess, tx, it)
	}
	for _, id := range deps.Store.Caskets.CasketIDs() {
		if target := tx.Get(id); target != nil && !target.IsCasket() {
			metrics.Anomalies.WithLabelValues("casket_link").Inc()
			sess.Log().Error("storage contents filed under non-casket",
				zap.Uint64("casket_id", id),
				zap.Uint32("target_def_index", target.DefIndex),
			)
		}
	}
}

func isEconItem(sess *net.Session, typeID int32) bool {
	if typeID == protocol.SOTypeEconItem {
		return true
	}
	sess.Log().Debug("ignoring so object type", zap.Int32("type_id", typeID))
	return false
}

func decodeItem(sess *net.Session, raw []byte) (*protocol.EconItem, bool) {
	var w protocol.EconItem
	if err := w.Unmarshal(raw); err != nil {
		metrics.Anomalies.WithLabelValues("item_decode").Inc()
		sess.Log().Warn("econ item decode failed", zap.Int("size", len(raw)), zap.Error(err))
		return nil, false
	}
	return &w, true
}

// econObjects flattens the economy-item objects of a cache snapshot.
func econObjects(c *protocol.CacheSubscribed) [][]byte {
	if c == nil {
		return nil
	}
	var out [][]byte
	for _, t := range c.Objects {
		if t.TypeID != protocol.SOTypeEconItem {
			continue
		}
		out = append(out, t.ObjectData...)
	}
	return out
}
