package client

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

var inspectLink = regexp.MustCompile(`([SM])(\d+)A(\d+)D(\d+)$`)

// InspectParams identifies an item to inspect. Exactly one of Owner (a
// 64-bit Steam id, for inventory links) or Market (a listing id) is set.
type InspectParams struct {
	Owner   uint64
	Market  uint64
	AssetID uint64
	D       uint64
}

// ParseInspectURL extracts the parameters of a steam://rungame inspect link.
func ParseInspectURL(url string) (InspectParams, error) {
	m := inspectLink.FindStringSubmatch(url)
	if m == nil {
		return InspectParams{}, fmt.Errorf("%w: %q", ErrInvalidInspectURL, url)
	}
	var nums [3]uint64
	for i, s := range m[2:] {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return InspectParams{}, fmt.Errorf("%w: %q: %w", ErrInvalidInspectURL, url, err)
		}
		nums[i] = n
	}
	p := InspectParams{AssetID: nums[1], D: nums[2]}
	if m[1] == "S" {
		p.Owner = nums[0]
	} else {
		p.Market = nums[0]
	}
	return p, nil
}

func (p InspectParams) validate() error {
	if p.Owner == 0 && p.Market == 0 {
		return fmt.Errorf("%w: owner or market id required", ErrInvalidInspectURL)
	}
	if p.AssetID == 0 || p.D == 0 {
		return fmt.Errorf("%w: asset id and d required", ErrInvalidInspectURL)
	}
	return nil
}

// InspectURL parses url and inspects the item it points at.
func (c *Client) InspectURL(ctx context.Context, url string) (*backpack.Inspected, error) {
	p, err := ParseInspectURL(url)
	if err != nil {
		return nil, err
	}
	return c.Inspect(ctx, p)
}

// Inspect requests the preview data block of an item. Results are cached by
// asset id. The backpack is not touched.
func (c *Client) Inspect(ctx context.Context, p InspectParams) (*backpack.Inspected, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if c.inspects != nil {
		if hit, ok := c.inspects.Get(p.AssetID); ok {
			c.log.Debug("inspect cache hit", zap.Uint64("asset_id", p.AssetID))
			return hit, nil
		}
	}

	req := &protocol.PreviewDataBlockRequest{S: p.Owner, A: p.AssetID, D: p.D, M: p.Market}
	msg, err := c.request(ctx, "inspect", packet.PreviewDataBlockResponse,
		func(m *packet.Message) bool {
			resp := m.Body.(*protocol.PreviewDataBlockResponse)
			return resp.ItemInfo != nil && resp.ItemInfo.ItemID == p.AssetID
		},
		func(ctx context.Context) error {
			return c.sess.SendProto(ctx, packet.PreviewDataBlockRequest, req)
		},
	)
	if err != nil {
		return nil, err
	}

	item := backpack.FromPreviewDataBlock(msg.Body.(*protocol.PreviewDataBlockResponse).ItemInfo)
	item.Name = c.deps.Items.DisplayName(item.DefIndex, uint32(item.Paint.Index))
	if c.inspects != nil {
		c.inspects.Add(p.AssetID, item)
	}

	event.Emit(c.sess.Bus(), event.InspectItemInfo{Item: item})
	c.sess.Bus().Flush()
	return item, nil
}
