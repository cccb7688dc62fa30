package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// notified matches a customization notification of kind that lists id.
func notified(kind packet.Notification, id uint64) func(*packet.Message) bool {
	return func(m *packet.Message) bool {
		n := m.Body.(*protocol.ItemCustomizationNotification)
		return packet.Notification(n.Request) == kind && n.Contains(id)
	}
}

// Rename applies nameTagID to itemID and waits for the GC to confirm.
func (c *Client) Rename(ctx context.Context, nameTagID, itemID uint64, name string) error {
	w := packet.NewWriter()
	w.WriteQ(nameTagID)
	w.WriteQ(itemID)
	w.WriteC(0x00)
	w.WriteS(name)

	_, err := c.request(ctx, "rename", packet.ItemCustomizationNotification,
		notified(packet.NotifyNameItem, itemID),
		func(ctx context.Context) error {
			return c.sess.SendStruct(ctx, packet.NameItem, w)
		},
	)
	if err != nil {
		return err
	}
	c.log.Info("item renamed", zap.Uint64("item_id", itemID), zap.String("name", name))
	return nil
}

// Delete asks the GC to delete itemID. No confirmation is awaited; the
// removal shows up as an SOCache destroy.
func (c *Client) Delete(ctx context.Context, itemID uint64) error {
	start := time.Now()
	if err := c.awaitReady(ctx); err != nil {
		observe("delete", "not_ready", start)
		return err
	}
	w := packet.NewWriter()
	w.WriteQ(itemID)
	if err := c.sess.SendStruct(ctx, packet.Delete, w); err != nil {
		observe("delete", "send_error", start)
		return fmt.Errorf("delete: %w", err)
	}
	observe("delete", "ok", start)
	return nil
}

// CasketAdd moves itemID into the storage unit casketID.
func (c *Client) CasketAdd(ctx context.Context, casketID, itemID uint64) error {
	return c.casketMove(ctx, "casket_add", packet.CasketItemAdd, packet.NotifyCasketAdded, casketID, itemID)
}

// CasketRemove moves itemID out of the storage unit casketID.
func (c *Client) CasketRemove(ctx context.Context, casketID, itemID uint64) error {
	return c.casketMove(ctx, "casket_remove", packet.CasketItemExtract, packet.NotifyCasketRemoved, casketID, itemID)
}

func (c *Client) casketMove(ctx context.Context, flow string, l packet.Language, kind packet.Notification, casketID, itemID uint64) error {
	req := &protocol.CasketItem{CasketItemID: casketID, ItemItemID: itemID}
	_, err := c.request(ctx, flow, packet.ItemCustomizationNotification,
		notified(kind, casketID),
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, l, req)
		},
	)
	return err
}

// CasketContents asks the GC to load the contents of casketID and waits
// until every listed item has arrived in the side index. When the GC lists
// nothing, the storage unit's content count is awaited instead.
func (c *Client) CasketContents(ctx context.Context, casketID uint64) ([]*backpack.Item, error) {
	req := &protocol.CasketItem{CasketItemID: casketID, ItemItemID: casketID}
	msg, err := c.request(ctx, "casket_contents", packet.ItemCustomizationNotification,
		notified(packet.NotifyCasketContents, casketID),
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, packet.CasketItemLoadContents, req)
		},
	)
	if err != nil {
		return nil, err
	}

	n := msg.Body.(*protocol.ItemCustomizationNotification)
	var want []uint64
	if len(n.ItemIDs) > 0 && n.ItemIDs[0] == casketID {
		want = n.ItemIDs[1:]
	}
	minCount := len(want)
	if unit, err := c.deps.Store.Get(casketID); err == nil && unit.Container != nil {
		minCount = max(minCount, int(unit.Container.ContainedItemCount))
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.CasketWaitTimeout)
	defer cancel()
	items, err := c.deps.Store.Caskets.Wait(waitCtx, casketID, want, minCount)
	if err != nil {
		observe("casket_wait", "timeout", start)
		c.log.Warn("storage unit contents incomplete",
			zap.Uint64("casket_id", casketID),
			zap.Int("have", c.deps.Store.Caskets.Count(casketID)),
			zap.Int("want", minCount),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError("casket_contents", err)
		}
		return nil, fmt.Errorf("casket_contents: %w", err)
	}
	observe("casket_wait", "ok", start)
	return items, nil
}
