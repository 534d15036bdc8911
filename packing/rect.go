package packing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// Rect 是一个待打包的矩形单元。Width/Height 由 Pack 在打包前按配置的
// PaddingX/PaddingY 膨胀，打包完成后恢复为原始尺寸。
type Rect struct {
	// Name 是调用方提供的标识名，仅用于输出记录，不参与布局计算。
	Name string `json:"name"`
	// Index 区分同名矩形（例如动画帧序号）。
	Index int `json:"index"`
	// X 是打包后在页面内的水平位置，打包前未定义。
	X int `json:"x"`
	// Y 是打包后在页面内的垂直位置，打包前未定义。
	Y int `json:"y"`
	// Width 是矩形的宽度。
	Width int `json:"width"`
	// Height 是矩形的高度。
	Height int `json:"height"`
	// Rotated 指示矩形被旋转了90°放置。旋转后 Width/Height 已交换。
	Rotated bool `json:"rotated,omitempty"`
	// CanRotate 是单个矩形的旋转开关，用于必须保持方向的资源
	// （如九宫格图）。只有它与 Settings.Rotation 同时为真才允许旋转。
	CanRotate bool `json:"-"`
}

// NewRect 创建一个指定标识和尺寸的矩形，默认允许旋转。
func NewRect(name string, index, width, height int) *Rect {
	return &Rect{Name: name, Index: index, Width: width, Height: height, CanRotate: true}
}

// Area 返回矩形面积。
func (r *Rect) Area() int {
	return r.Width * r.Height
}

// MaxSide 返回较长边的值。
func (r *Rect) MaxSide() int {
	return max(r.Width, r.Height)
}

// String 返回描述矩形的字符串。
func (r *Rect) String() string {
	return fmt.Sprintf("%s[%d] %dx%d@(%d,%d)", r.Name, r.Index, r.Width, r.Height, r.X, r.Y)
}

// Page 是一次单页打包的结果。
type Page struct {
	// OutputRects 是成功放置的矩形，X/Y/Rotated 已写入。
	OutputRects []*Rect
	// RemainingRects 是本页放不下、留给下一页的矩形。
	RemainingRects []*Rect
	// Occupancy 是已放置面积与页面面积之比。
	Occupancy float64
	// Width 是实际使用区域的宽度（可能小于搜索时的箱体宽度）。
	Width int
	// Height 是实际使用区域的高度。
	Height int
}

// ProgressListener 接收 [0,1] 区间内单调递增的进度，返回 true 请求中止。
// 打包器在页与页之间检查它，中止时返回已完成的页面。
type ProgressListener func(progress float64) (abort bool)

// Packer 是从矩形列表到页面列表的打包算法。
type Packer interface {
	// Pack 把矩形打包到一个或多个页面上。矩形的位置字段被原地修改，
	// 并发调用时每次调用必须持有独立的矩形副本。
	Pack(rects []*Rect) ([]*Page, error)
}

// Settings 是打包器的只读配置。
type Settings struct {
	// Rotation 允许矩形旋转90°放置。
	Rotation bool
	// PowerOfTwo 将搜索尺寸约束为2的幂。
	PowerOfTwo bool
	// MultipleOfFour 将搜索尺寸约束为4的倍数。
	MultipleOfFour bool
	// Square 强制页面宽高相等。
	Square bool
	// Fast 使用单遍贪心模式，牺牲密度换取速度。
	Fast bool
	// Grid 选择均匀网格打包器替代 MaxRects。
	Grid bool
	// EdgePadding 在页面边缘也保留间距。
	EdgePadding bool
	// DuplicatePadding 表示间距用于复制边缘像素，边缘只需单倍间距。
	DuplicatePadding bool
	// FlattenPaths 在按名称排序输出时忽略目录部分。
	FlattenPaths bool
	// MinWidth/MinHeight 是尺寸搜索的下界。
	MinWidth  int
	MinHeight int
	// MaxWidth/MaxHeight 是允许的最大页面尺寸。
	MaxWidth  int
	MaxHeight int
	// PaddingX/PaddingY 在打包前膨胀每个矩形。
	PaddingX int
	PaddingY int
}

// DefaultSettings 返回适合创建纹理图集的默认配置。
func DefaultSettings() Settings {
	return Settings{
		MinWidth:  16,
		MinHeight: 16,
		MaxWidth:  4096,
		MaxHeight: 4096,
	}
}

// Validate 检查配置的一致性。约束冲突是致命的配置错误，
// 在任何打包开始之前报告。
func (s *Settings) Validate() error {
	if s.MinWidth <= 0 || s.MinHeight <= 0 || s.MaxWidth <= 0 || s.MaxHeight <= 0 {
		return fmt.Errorf("packing: page sizes must be greater than 0 (min %dx%d, max %dx%d)",
			s.MinWidth, s.MinHeight, s.MaxWidth, s.MaxHeight)
	}
	if s.MinWidth > s.MaxWidth || s.MinHeight > s.MaxHeight {
		return fmt.Errorf("packing: min page size %dx%d exceeds max page size %dx%d",
			s.MinWidth, s.MinHeight, s.MaxWidth, s.MaxHeight)
	}
	if s.PowerOfTwo && s.MultipleOfFour {
		return fmt.Errorf("packing: powerOfTwo and multipleOfFour cannot both be set")
	}
	if s.PowerOfTwo && (!isPowerOfTwo(s.MaxWidth) || !isPowerOfTwo(s.MaxHeight)) {
		return fmt.Errorf("packing: powerOfTwo requires power of two max page size, got %dx%d",
			s.MaxWidth, s.MaxHeight)
	}
	if s.MultipleOfFour && (s.MaxWidth%4 != 0 || s.MaxHeight%4 != 0) {
		return fmt.Errorf("packing: multipleOfFour requires max page size divisible by 4, got %dx%d",
			s.MaxWidth, s.MaxHeight)
	}
	if s.PaddingX < 0 || s.PaddingY < 0 {
		return fmt.Errorf("packing: padding cannot be negative (%d,%d)", s.PaddingX, s.PaddingY)
	}
	if w, h := s.effectiveMaxSize(); w <= 0 || h <= 0 {
		return fmt.Errorf("packing: edge padding %d,%d leaves no usable space on a %dx%d page",
			s.PaddingX, s.PaddingY, s.MaxWidth, s.MaxHeight)
	}
	return nil
}

// effectiveMaxSize 返回搜索用的有效最大箱体尺寸。
// 开启 EdgePadding 时边缘也要留间距，可用空间相应缩小；
// DuplicatePadding 表示间距像素会被复制填充，边缘只需要单倍。
func (s *Settings) effectiveMaxSize() (int, int) {
	w, h := s.MaxWidth, s.MaxHeight
	if s.EdgePadding {
		if s.DuplicatePadding {
			w -= s.PaddingX
			h -= s.PaddingY
		} else {
			w -= s.PaddingX * 2
			h -= s.PaddingY * 2
		}
	}
	return w, h
}

// RectTooBigError 表示某个矩形在任何允许的朝向下都超过最大页面尺寸。
// 这是致命错误，立即上报而不重试。
type RectTooBigError struct {
	Name          string
	Index         int
	Width, Height int
	MaxWidth      int
	MaxHeight     int
	Rotation      bool
}

func (e *RectTooBigError) Error() string {
	if e.Rotation {
		return fmt.Sprintf("packing: rect %q[%d] of size %dx%d (rotated %dx%d) does not fit in max page size %dx%d",
			e.Name, e.Index, e.Width, e.Height, e.Height, e.Width, e.MaxWidth, e.MaxHeight)
	}
	return fmt.Sprintf("packing: rect %q[%d] of size %dx%d does not fit in max page size %dx%d",
		e.Name, e.Index, e.Width, e.Height, e.MaxWidth, e.MaxHeight)
}

// SortRectNames 按名称的自然顺序排序输出矩形，同名时按 Index。
// flattenPaths 为真时忽略名称中的目录部分。排序规则作为显式参数传入，
// 不依赖任何共享状态。
func SortRectNames(rects []*Rect, flattenPaths bool) {
	key := func(r *Rect) string {
		if flattenPaths {
			if i := strings.LastIndexByte(r.Name, '/'); i >= 0 {
				return r.Name[i+1:]
			}
		}
		return r.Name
	}
	slices.SortStableFunc(rects, func(a, b *Rect) int {
		ka, kb := key(a), key(b)
		if ka != kb {
			if natural.Less(ka, kb) {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})
}

// sortForPacking 在打包前按尺寸降序排序。快速模式是单遍贪心，
// 排序轴直接决定质量：允许旋转时按最长边，否则按宽度。
func sortForPacking(rects []*Rect, s *Settings) {
	if s.Fast {
		if s.Rotation {
			slices.SortStableFunc(rects, func(a, b *Rect) int {
				return b.MaxSide() - a.MaxSide()
			})
		} else {
			slices.SortStableFunc(rects, func(a, b *Rect) int {
				return b.Width - a.Width
			})
		}
		return
	}
	slices.SortStableFunc(rects, func(a, b *Rect) int {
		return b.Area() - a.Area()
	})
}

// isPowerOfTwo 判断 n 是否为2的幂。
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ceilPowerOfTwo 返回不小于 n 的最小2的幂。
func ceilPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// ceilMultipleOfFour 返回不小于 n 的最小4的倍数。
func ceilMultipleOfFour(n int) int {
	if r := n % 4; r != 0 {
		return n + 4 - r
	}
	return n
}

// alignSize 将尺寸提升到配置允许的最近值。
func (s *Settings) alignSize(n int) int {
	if s.PowerOfTwo {
		return ceilPowerOfTwo(n)
	}
	if s.MultipleOfFour {
		return ceilMultipleOfFour(n)
	}
	return n
}
