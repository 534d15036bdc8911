package packing

import (
	"fmt"
	"math/bits"
)

// MaxRectsPacker 用 MaxRects 算法把矩形打包到一个或多个接近最小
// 尺寸的页面上。每次 Pack 调用都使用独立的空闲区域集合，多个
// 打包器实例可以在不同 goroutine 中并行运行，只要各自持有独立
// 的矩形副本。
type MaxRectsPacker struct {
	settings Settings
	progress ProgressListener
}

// NewMaxRectsPacker 创建打包器。配置不一致时返回错误。
func NewMaxRectsPacker(settings Settings) (*MaxRectsPacker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &MaxRectsPacker{settings: settings}, nil
}

// SetProgressListener 设置进度回调，在页与页之间调用。
// 回调返回 true 时打包提前结束并返回已完成的页面。
func (p *MaxRectsPacker) SetProgressListener(fn ProgressListener) {
	p.progress = fn
}

// Pack 把矩形打包为页面列表。矩形的 X/Y/Rotated 被原地写入；
// 每个输入矩形恰好出现在一个页面的 OutputRects 中，除非因超过
// 最大页面尺寸而返回致命错误。
func (p *MaxRectsPacker) Pack(rects []*Rect) ([]*Page, error) {
	if err := p.settings.Validate(); err != nil {
		return nil, err
	}
	if len(rects) == 0 {
		return nil, nil
	}
	s := &p.settings
	maxW, maxH := s.effectiveMaxSize()
	// 强制正方形时实际可用的箱体是较短边的正方形。
	checkW, checkH := maxW, maxH
	if s.Square {
		side := min(maxW, maxH)
		checkW, checkH = side, side
	}

	// 任何朝向都放不进最大页面的矩形是配置错误，立即上报。
	for _, r := range rects {
		pw, ph := r.Width+s.PaddingX, r.Height+s.PaddingY
		fits := pw <= checkW && ph <= checkH
		if !fits && s.Rotation && r.CanRotate {
			fits = ph <= checkW && pw <= checkH
		}
		if !fits {
			return nil, &RectTooBigError{
				Name: r.Name, Index: r.Index,
				Width: r.Width, Height: r.Height,
				MaxWidth: s.MaxWidth, MaxHeight: s.MaxHeight,
				Rotation: s.Rotation && r.CanRotate,
			}
		}
	}

	ordered := make([]*Rect, len(rects))
	copy(ordered, rects)
	sortForPacking(ordered, s)

	pending := make([]entry, len(ordered))
	for i, r := range ordered {
		pending[i] = entry{idx: i, w: r.Width + s.PaddingX, h: r.Height + s.PaddingY, canRotate: r.CanRotate}
	}

	var pages []*Page
	total := len(pending)
	for len(pending) > 0 {
		if p.progress != nil && p.progress(float64(total-len(pending))/float64(total)) {
			return pages, nil
		}
		page, rest := p.packPage(ordered, pending)
		if len(page.OutputRects) == 0 {
			// 超尺寸检查之后不应该发生，防御空页死循环。
			return pages, fmt.Errorf("packing: no rect fits on an empty %dx%d page", checkW, checkH)
		}
		pages = append(pages, page)
		pending = rest
	}
	if p.progress != nil {
		p.progress(1)
	}
	return pages, nil
}

// packPage 打包单个页面：对候选页面尺寸做二分搜索，取能放下全部
// 剩余矩形的最小尺寸；全都放不下时退回最大尺寸，余量留给下一页。
func (p *MaxRectsPacker) packPage(rects []*Rect, pending []entry) (*Page, []entry) {
	s := &p.settings
	maxW, maxH := s.effectiveMaxSize()

	// 下界：最大的单个矩形尺寸（每个矩形都必须放得下），
	// 再提升到约束允许的值。
	minW, minH := s.MinWidth, s.MinHeight
	for _, e := range pending {
		w, h := e.w, e.h
		if s.Rotation && e.canRotate {
			// 可旋转矩形只要求短边放得下其中一轴。
			w, h = min(e.w, e.h), min(e.w, e.h)
		}
		minW = max(minW, w)
		minH = max(minH, h)
	}
	minW = min(s.alignSize(minW), maxW)
	minH = min(s.alignSize(minH), maxH)

	var result *pageResult
	if s.Square {
		lo, hi := max(minW, minH), min(maxW, maxH)
		p.searchSizes(lo, hi, func(size int) bool {
			r := p.packAtSize(true, size, size, pending)
			if r != nil && (result == nil || r.betterThan(result)) {
				result = r
			}
			return r != nil
		})
	} else {
		// 宽度外层、高度内层的嵌套二分，O(log W x log H) 次探测。
		p.searchSizes(minW, maxW, func(width int) bool {
			var forWidth *pageResult
			p.searchSizes(minH, maxH, func(height int) bool {
				r := p.packAtSize(true, width, height, pending)
				if r != nil && (forWidth == nil || r.betterThan(forWidth)) {
					forWidth = r
				}
				return r != nil
			})
			if forWidth != nil && (result == nil || forWidth.betterThan(result)) {
				result = forWidth
			}
			return forWidth != nil
		})
	}
	if result == nil {
		// 没有任何探测尺寸能放下全部矩形：按最大允许尺寸打包，
		// 放不下的部分是下一页的输入。
		w, h := maxW, maxH
		if s.Square {
			w = min(maxW, maxH)
			h = w
		}
		result = p.packAtSize(false, w, h, pending)
	}
	return p.finishPage(rects, result, pending)
}

// searchSizes 在对齐约束的网格上二分查找满足 fits 的最小尺寸。
// PowerOfTwo 在指数域搜索，MultipleOfFour 在4步长域搜索。
func (p *MaxRectsPacker) searchSizes(minSize, maxSize int, fits func(int) bool) {
	s := &p.settings
	value := func(i int) int { return i }
	lo, hi := minSize, maxSize
	switch {
	case s.PowerOfTwo:
		value = func(i int) int { return 1 << i }
		lo = bits.Len(uint(ceilPowerOfTwo(minSize) - 1))
		hi = bits.Len(uint(maxSize - 1))
	case s.MultipleOfFour:
		value = func(i int) int { return i * 4 }
		lo = ceilMultipleOfFour(minSize) / 4
		hi = maxSize / 4
	}
	if lo > hi {
		return
	}
	probedLo := false
	for lo < hi {
		mid := (lo + hi) / 2
		if fits(value(mid)) {
			hi = mid
			probedLo = true
		} else {
			lo = mid + 1
			probedLo = false
		}
	}
	if !probedLo {
		fits(value(lo))
	}
}

// pageResult 是一次探测的结果，保留胜出启发式的放置集合。
type pageResult struct {
	binW, binH int
	heuristic  Heuristic
	placements []placed
	remaining  []entry
	usedArea   int
}

// full 报告本次探测是否放下了全部矩形。
func (r *pageResult) full() bool {
	return len(r.remaining) == 0
}

// betterThan 比较两个探测结果：先比放置数量，再比箱体占用率。
func (r *pageResult) betterThan(other *pageResult) bool {
	if len(r.placements) != len(other.placements) {
		return len(r.placements) > len(other.placements)
	}
	ra := float64(r.usedArea) / float64(r.binW*r.binH)
	oa := float64(other.usedArea) / float64(other.binW*other.binH)
	return ra > oa
}

// packAtSize 在给定箱体尺寸下让全部五种启发式竞争。
// fully 为真时要求放下所有矩形，第一个做到的启发式直接胜出，
// 否则返回 nil；fully 为假时保留放得最多、占用最高的结果。
func (p *MaxRectsPacker) packAtSize(fully bool, binW, binH int, pending []entry) *pageResult {
	var bin maxRectsBin
	bin.rotation = p.settings.Rotation
	var best *pageResult
	for _, heur := range allHeuristics {
		bin.reset(binW, binH)
		placements, remaining := bin.pack(pending, heur, p.settings.Fast)
		if fully && len(remaining) > 0 {
			continue
		}
		r := &pageResult{
			binW: binW, binH: binH,
			heuristic:  heur,
			placements: placements,
			remaining:  remaining,
			usedArea:   bin.usedArea,
		}
		if fully {
			return r
		}
		if best == nil || r.betterThan(best) {
			best = r
		}
	}
	return best
}

// finishPage 把胜出结果写回矩形，并把页面尺寸收缩为实际使用的
// 包围盒（搜索时的箱体为间距留了余量，这里去掉），再提升到
// 尺寸约束允许的值。
func (p *MaxRectsPacker) finishPage(rects []*Rect, result *pageResult, pending []entry) (*Page, []entry) {
	s := &p.settings
	page := &Page{}
	var placedArea int
	for _, pl := range result.placements {
		r := rects[pl.idx]
		r.X = pl.x
		r.Y = pl.y
		if pl.rotated {
			r.Width, r.Height = r.Height, r.Width
			r.Rotated = true
		}
		page.OutputRects = append(page.OutputRects, r)
		placedArea += r.Area()
		page.Width = max(page.Width, r.X+r.Width)
		page.Height = max(page.Height, r.Y+r.Height)
	}
	page.Width = s.alignSize(page.Width)
	page.Height = s.alignSize(page.Height)
	if s.Square {
		side := max(page.Width, page.Height)
		page.Width, page.Height = side, side
	}
	if page.Width > 0 && page.Height > 0 {
		page.Occupancy = float64(placedArea) / float64(page.Width*page.Height)
	}
	for _, e := range result.remaining {
		page.RemainingRects = append(page.RemainingRects, rects[e.idx])
	}
	return page, result.remaining
}
