package packing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlaps(a, b *Rect) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}

// checkPages 验证打包结果的公共不变量：页内无重叠、矩形都在页面
// 边界内、每个输入矩形恰好出现一次。
func checkPages(t *testing.T, pages []*Page, input []*Rect) {
	t.Helper()
	seen := make(map[*Rect]int)
	for idx, page := range pages {
		rects := page.OutputRects
		for i := 0; i < len(rects); i++ {
			r := rects[i]
			seen[r]++
			assert.GreaterOrEqual(t, r.X, 0, "%s 在页 %d 越过左边界", r, idx)
			assert.GreaterOrEqual(t, r.Y, 0, "%s 在页 %d 越过上边界", r, idx)
			assert.LessOrEqual(t, r.X+r.Width, page.Width, "%s 越过页 %d 右边界", r, idx)
			assert.LessOrEqual(t, r.Y+r.Height, page.Height, "%s 越过页 %d 下边界", r, idx)
			for j := i + 1; j < len(rects); j++ {
				assert.False(t, overlaps(r, rects[j]), "页 %d: %s 与 %s 重叠", idx, r, rects[j])
			}
		}
	}
	for _, r := range input {
		assert.Equal(t, 1, seen[r], "%s 应恰好出现在一个页面上", r)
	}
}

func TestPackThreeRects(t *testing.T) {
	// 三个矩形打进一页，允许旋转，完整搜索
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256
	settings.Rotation = true

	rects := []*Rect{
		NewRect("a", 0, 100, 50),
		NewRect("b", 0, 50, 100),
		NewRect("c", 0, 80, 80),
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Greater(t, pages[0].Occupancy, 0.5)
	checkPages(t, pages, rects)
}

func TestPackOversizedRect(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 1024
	settings.MaxHeight = 1024

	rects := []*Rect{NewRect("huge", 3, 2000, 2000)}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	_, err = packer.Pack(rects)
	var tooBig *RectTooBigError
	require.ErrorAs(t, err, &tooBig)
	assert.Equal(t, "huge", tooBig.Name)
	assert.Equal(t, 3, tooBig.Index)
	assert.Equal(t, 2000, tooBig.Width)
	assert.Equal(t, 2000, tooBig.Height)
}

func TestPackPowerOfTwoPageSize(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 512
	settings.MaxHeight = 512
	settings.PowerOfTwo = true

	rects := make([]*Rect, 50)
	for i := range rects {
		rects[i] = NewRect("tile", i, 64, 64)
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	assert.True(t, isPowerOfTwo(page.Width), "宽度 %d 不是2的幂", page.Width)
	assert.True(t, isPowerOfTwo(page.Height), "高度 %d 不是2的幂", page.Height)
	minOccupancy := float64(50*64*64) / float64(512*512)
	assert.GreaterOrEqual(t, page.Occupancy, minOccupancy)
	checkPages(t, pages, rects)
}

func TestPackMultiplePages(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256

	// 每页只放得下一个 200x200
	rects := make([]*Rect, 4)
	for i := range rects {
		rects[i] = NewRect("big", i, 200, 200)
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	assert.Len(t, pages, 4)
	checkPages(t, pages, rects)
}

func TestPackRandomNoOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, fast := range []bool{false, true} {
		t.Run(fmt.Sprintf("fast=%v", fast), func(t *testing.T) {
			settings := DefaultSettings()
			settings.MaxWidth = 512
			settings.MaxHeight = 512
			settings.Rotation = true
			settings.Fast = fast
			settings.PaddingX = 2
			settings.PaddingY = 2

			count := 40
			if fast {
				count = 200
			}
			rects := make([]*Rect, count)
			for i := range rects {
				rects[i] = NewRect("r", i, rng.Intn(90)+8, rng.Intn(90)+8)
			}
			packer, err := NewMaxRectsPacker(settings)
			require.NoError(t, err)
			pages, err := packer.Pack(rects)
			require.NoError(t, err)
			require.NotEmpty(t, pages)
			checkPages(t, pages, rects)
		})
	}
}

func TestRotationLegality(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256
	settings.Rotation = false

	rects := []*Rect{
		NewRect("a", 0, 100, 30),
		NewRect("b", 0, 30, 100),
		NewRect("c", 0, 60, 60),
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	for _, page := range pages {
		for _, r := range page.OutputRects {
			assert.False(t, r.Rotated, "全局禁止旋转时 %s 不应被旋转", r)
		}
	}

	// 单个矩形关闭旋转后，只有旋转才放得下的矩形必须报错
	settings.Rotation = true
	settings.MaxWidth = 60
	settings.MaxHeight = 110
	fixed := NewRect("ninepatch", 0, 100, 50)
	fixed.CanRotate = false
	packer, err = NewMaxRectsPacker(settings)
	require.NoError(t, err)
	_, err = packer.Pack([]*Rect{fixed})
	var tooBig *RectTooBigError
	require.ErrorAs(t, err, &tooBig)
	assert.Equal(t, "ninepatch", tooBig.Name)
}

func TestForcedRotation(t *testing.T) {
	settings := DefaultSettings()
	settings.MinWidth = 1
	settings.MinHeight = 1
	settings.MaxWidth = 60
	settings.MaxHeight = 110
	settings.Rotation = true

	r := NewRect("tall", 0, 100, 50)
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack([]*Rect{r})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.True(t, r.Rotated)
	assert.Equal(t, 50, r.Width)
	assert.Equal(t, 100, r.Height)
	checkPages(t, pages, []*Rect{r})
}

func TestSquareOversizedRect(t *testing.T) {
	// 强制正方形且页面宽高不等时，可用箱体是较短边的正方形，
	// 放不进它的矩形必须带着自己的身份报错
	settings := DefaultSettings()
	settings.MaxWidth = 512
	settings.MaxHeight = 256
	settings.Square = true

	rects := []*Rect{NewRect("banner", 1, 400, 200)}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	_, err = packer.Pack(rects)
	var tooBig *RectTooBigError
	require.ErrorAs(t, err, &tooBig)
	assert.Equal(t, "banner", tooBig.Name)
	assert.Equal(t, 1, tooBig.Index)
	assert.Equal(t, 400, tooBig.Width)
	assert.Equal(t, 200, tooBig.Height)
}

func TestSquarePages(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 512
	settings.MaxHeight = 512
	settings.Square = true

	rects := []*Rect{
		NewRect("a", 0, 120, 40),
		NewRect("b", 0, 40, 120),
		NewRect("c", 0, 90, 90),
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	for _, page := range pages {
		assert.Equal(t, page.Width, page.Height)
	}
	checkPages(t, pages, rects)
}

func TestMultipleOfFourPageSize(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 500
	settings.MaxHeight = 500
	settings.MultipleOfFour = true

	rects := []*Rect{
		NewRect("a", 0, 101, 37),
		NewRect("b", 0, 53, 118),
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)
	pages, err := packer.Pack(rects)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Zero(t, pages[0].Width%4)
	assert.Zero(t, pages[0].Height%4)
	checkPages(t, pages, rects)
}

func TestProgressCancellation(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxWidth = 256
	settings.MaxHeight = 256

	rects := make([]*Rect, 10)
	for i := range rects {
		rects[i] = NewRect("big", i, 200, 200)
	}
	packer, err := NewMaxRectsPacker(settings)
	require.NoError(t, err)

	var reported []float64
	packer.SetProgressListener(func(progress float64) bool {
		reported = append(reported, progress)
		return progress >= 0.5
	})
	pages, err := packer.Pack(rects)
	require.NoError(t, err, "取消不是错误")
	assert.Len(t, pages, 5)

	// 进度单调递增
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1])
	}
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"最小宽度大于最大宽度", func(s *Settings) { s.MinWidth = 2048; s.MaxWidth = 1024 }},
		{"最小高度大于最大高度", func(s *Settings) { s.MinHeight = 2048; s.MaxHeight = 1024 }},
		{"2的幂约束与最大宽度冲突", func(s *Settings) { s.PowerOfTwo = true; s.MaxWidth = 1000 }},
		{"4的倍数约束与最大高度冲突", func(s *Settings) { s.MultipleOfFour = true; s.MaxHeight = 1023 }},
		{"两种尺寸约束互斥", func(s *Settings) { s.PowerOfTwo = true; s.MultipleOfFour = true }},
		{"尺寸必须为正", func(s *Settings) { s.MaxWidth = 0 }},
		{"间距不能为负", func(s *Settings) { s.PaddingX = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.mutate(&settings)
			_, err := NewMaxRectsPacker(settings)
			assert.Error(t, err)
			_, err = NewGridPacker(settings)
			assert.Error(t, err)
		})
	}
}

func TestPackEmptyInput(t *testing.T) {
	packer, err := NewMaxRectsPacker(DefaultSettings())
	require.NoError(t, err)
	pages, err := packer.Pack(nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestOccupancyNotWorseThanLargerBin(t *testing.T) {
	// 二分搜索选出的尺寸不应比更大的已知可行尺寸占用率更低
	pack := func(binSize int) *Page {
		settings := DefaultSettings()
		settings.MinWidth = binSize
		settings.MinHeight = binSize
		settings.MaxWidth = binSize
		settings.MaxHeight = binSize
		rects := make([]*Rect, 16)
		for i := range rects {
			rects[i] = NewRect("sq", i, 100, 100)
		}
		packer, err := NewMaxRectsPacker(settings)
		require.NoError(t, err)
		pages, err := packer.Pack(rects)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		checkPages(t, pages, rects)
		return pages[0]
	}
	small := pack(512)
	large := pack(1024)
	assert.GreaterOrEqual(t, small.Occupancy, large.Occupancy)
}
