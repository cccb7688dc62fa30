package backpack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbackpack/csgogc/internal/attribute"
)

func TestStoreUpsertMergesExisting(t *testing.T) {
	s := NewStore([]*Item{{AssetID: 1, DefIndex: 7, Name: "AK-47 | Redline"}})

	s.Upsert(&Item{AssetID: 1, DefIndex: 7, Quality: 4, Attributes: []attribute.Attribute{attribute.Uint(9, 1)}})
	s.Upsert(&Item{AssetID: 2, DefIndex: 9})

	assert.Equal(t, 2, s.Len())
	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), got.Quality)
	assert.Equal(t, "AK-47 | Redline", got.Name, "community name survives a GC merge")
	assert.Len(t, got.Attributes, 1)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore([]*Item{{AssetID: 1, Paint: &Paint{Wear: 0.1}}})
	got, err := s.Get(1)
	require.NoError(t, err)
	got.Paint.Wear = 0.9

	again, err := s.Get(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, again.Paint.Wear, 1e-6)
}

func TestStoreRemove(t *testing.T) {
	s := NewStore([]*Item{{AssetID: 1}, {AssetID: 2}, {AssetID: 3}})

	removed, err := s.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), removed.AssetID)
	assert.Equal(t, 2, s.Len())

	for _, id := range []uint64{2, 3} {
		_, err := s.Get(id)
		assert.NoError(t, err, "asset %d still indexed after swap-remove", id)
	}

	_, err = s.Remove(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreItemsOrderedByPosition(t *testing.T) {
	s := NewStore([]*Item{
		{AssetID: 30, Position: 2},
		{AssetID: 10, Position: 0},
		{AssetID: 20, Position: 1},
	})
	var ids []uint64
	for _, it := range s.Items() {
		ids = append(ids, it.AssetID)
	}
	assert.Equal(t, []uint64{10, 20, 30}, ids)
}

func TestStoreStorageUnits(t *testing.T) {
	s := NewStore([]*Item{
		{AssetID: 5, DefIndex: attribute.CasketDefIndex},
		{AssetID: 6, DefIndex: 7},
		{AssetID: 4, DefIndex: attribute.CasketDefIndex},
	})
	units := s.StorageUnits()
	require.Len(t, units, 2)
	assert.Equal(t, uint64(4), units[0].AssetID)
	assert.Equal(t, uint64(5), units[1].AssetID)
}

func TestDerivePosition(t *testing.T) {
	assert.Equal(t, uint32(7), DerivePosition(0x00050007, false))
	assert.Equal(t, uint32(0), DerivePosition(1<<30|12, true))
	assert.Equal(t, uint32(12), DerivePosition(1<<30|12, false))
	assert.Equal(t, uint32(12), DerivePosition(12, true))
}

func TestApplyAttributesAttachesContainer(t *testing.T) {
	it := &Item{AssetID: 1, DefIndex: attribute.CasketDefIndex}
	v, err := attribute.Decode([]attribute.Attribute{attribute.Uint(attribute.DefCasketContentCount, 3)})
	require.NoError(t, err)
	it.ApplyAttributes(v, false)
	require.NotNil(t, it.Container)
	assert.Equal(t, uint32(3), it.Container.ContainedItemCount)

	it.DefIndex = 7
	it.ApplyAttributes(attribute.Values{}, false)
	assert.Nil(t, it.Container)
}

func TestCasketIndexMovesBetweenCaskets(t *testing.T) {
	c := NewCasketIndex()
	c.Put(&Item{AssetID: 1, CasketID: 100})
	c.Put(&Item{AssetID: 1, CasketID: 200})

	assert.Equal(t, 0, c.Count(100))
	assert.Equal(t, 1, c.Count(200))

	it, ok := c.Remove(1)
	require.True(t, ok)
	assert.Equal(t, uint64(200), it.CasketID)
	assert.Equal(t, 0, c.Count(200))
}

func TestCasketIndexWaitWakesOnArrival(t *testing.T) {
	c := NewCasketIndex()
	c.Put(&Item{AssetID: 1, CasketID: 100})

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Put(&Item{AssetID: 2, CasketID: 100})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	items, err := c.Wait(ctx, 100, []uint64{1, 2}, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCasketIndexWaitTimesOut(t *testing.T) {
	c := NewCasketIndex()
	c.Put(&Item{AssetID: 1, CasketID: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Wait(ctx, 100, nil, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
