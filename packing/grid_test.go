package packing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridRects() []*Rect {
	return []*Rect{
		NewRect("a", 0, 30, 20),
		NewRect("b", 0, 50, 40),
		NewRect("c", 0, 20, 60),
		NewRect("d", 0, 45, 45),
		NewRect("e", 0, 10, 10),
		NewRect("f", 0, 60, 25),
	}
}

func TestGridRowMajorLayout(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256
	settings.PaddingX = 2
	settings.PaddingY = 2

	rects := gridRects()
	packer, err := NewGridPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	checkPages(t, pages, rects)

	// 单元尺寸 = 最大矩形宽/高 + 间距
	cellW, cellH := 60+2, 60+2
	perRow := 256 / cellW
	for i, r := range pages[0].OutputRects {
		assert.Equal(t, (i%perRow)*cellW, r.X)
		assert.Equal(t, (i/perRow)*cellH, r.Y)
		assert.LessOrEqual(t, r.X+r.Width, 256, "行宽超过最大页面宽度")
		assert.False(t, r.Rotated, "网格打包不做旋转")
	}
}

func TestGridIdempotence(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256

	packer, err := NewGridPacker(settings)
	require.NoError(t, err)
	first, err := packer.Pack(gridRects())
	require.NoError(t, err)

	// 同样的输入重复打包，单元分配完全一致
	second, err := packer.Pack(gridRects())
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, len(first[i].OutputRects), len(second[i].OutputRects))
		for j := range first[i].OutputRects {
			a, b := first[i].OutputRects[j], second[i].OutputRects[j]
			assert.Equal(t, a.X, b.X)
			assert.Equal(t, a.Y, b.Y)
		}
		assert.Equal(t, first[i].Occupancy, second[i].Occupancy)
	}
}

func TestGridMultiplePages(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256

	// 单元 100x100：每行2个，每页2行，共3页 (4+4+2)
	rects := make([]*Rect, 10)
	for i := range rects {
		rects[i] = NewRect("cell", i, 100, 100)
	}
	packer, err := NewGridPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Len(t, pages[0].OutputRects, 4)
	assert.Len(t, pages[1].OutputRects, 4)
	assert.Len(t, pages[2].OutputRects, 2)
	// 放不下的矩形出现在本页的余量里
	assert.Len(t, pages[0].RemainingRects, 6)
	assert.Len(t, pages[1].RemainingRects, 2)
	assert.Empty(t, pages[2].RemainingRects)
	checkPages(t, pages, rects)
}

func TestGridOversizedRect(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 128
	settings.MaxHeight = 128

	rects := []*Rect{
		NewRect("small", 0, 20, 20),
		NewRect("big", 1, 200, 40),
	}
	packer, err := NewGridPacker(settings)
	require.NoError(t, err)
	_, err = packer.Pack(rects)
	var tooBig *RectTooBigError
	require.ErrorAs(t, err, &tooBig)
	assert.Equal(t, "big", tooBig.Name)
}

func TestGridOversizedRectByDimension(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 128
	settings.MaxHeight = 128

	// 面积最大的矩形自身放得下，超限的是宽度最大的那一个，
	// 报错必须指向后者
	rects := []*Rect{
		NewRect("square", 0, 60, 60),
		NewRect("wide", 1, 130, 10),
	}
	packer, err := NewGridPacker(settings)
	require.NoError(t, err)
	_, err = packer.Pack(rects)
	var tooBig *RectTooBigError
	require.ErrorAs(t, err, &tooBig)
	assert.Equal(t, "wide", tooBig.Name)
	assert.Equal(t, 130, tooBig.Width)
	assert.Equal(t, 10, tooBig.Height)
}
