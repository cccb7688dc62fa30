package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleItems = `
items:
  - {def_index: 7, name: "AK-47", kind: weapon}
  - {def_index: 1201, name: "Storage Unit", kind: casket}
  - {def_index: 1200, name: "Name Tag"}
paint_kits:
  - {index: 282, name: "Redline"}
sticker_kits:
  - {id: 76, name: "Crown (Foil)"}
`

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadItemTable(t *testing.T) {
	tbl, err := LoadItemTable(writeTable(t, sampleItems))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Count())
	assert.Equal(t, KindCasket, tbl.Get(1201).Kind)
	assert.Equal(t, KindOther, tbl.Get(1200).Kind, "kind defaults to other")
	assert.Nil(t, tbl.Get(9999))
	assert.Equal(t, "Crown (Foil)", tbl.StickerName(76))
	assert.Equal(t, "", tbl.StickerName(1))
}

func TestDisplayName(t *testing.T) {
	tbl, err := LoadItemTable(writeTable(t, sampleItems))
	require.NoError(t, err)

	tests := []struct {
		def, paint uint32
		want       string
	}{
		{7, 282, "AK-47 | Redline"},
		{7, 0, "AK-47"},
		{7, 5, "AK-47"},
		{42, 282, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tbl.DisplayName(tt.def, tt.paint), "def %d paint %d", tt.def, tt.paint)
	}
}

func TestNilItemTable(t *testing.T) {
	var tbl *ItemTable
	assert.Nil(t, tbl.Get(7))
	assert.Equal(t, 0, tbl.Count())
	assert.Equal(t, "", tbl.DisplayName(7, 282))
	assert.Equal(t, "", tbl.StickerName(76))
}

func TestLoadItemTableErrors(t *testing.T) {
	_, err := LoadItemTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadItemTable(writeTable(t, "items: [unterminated"))
	assert.Error(t, err)
}

func TestShippedCatalogLoads(t *testing.T) {
	tbl, err := LoadItemTable(filepath.Join("..", "..", "data", "yaml", "items.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Storage Unit", tbl.Get(1201).Name)
}
