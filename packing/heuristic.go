package packing

import "math"

// Heuristic 是 MaxRects 的放置评分策略。五种策略在尺寸搜索的
// 每个探测点互相竞争，占用率最高者胜出。
type Heuristic int

const (
	// BestShortSideFit 最小化放置后较短的剩余边。
	BestShortSideFit Heuristic = iota
	// BestLongSideFit 最小化放置后较长的剩余边。
	BestLongSideFit
	// BestAreaFit 最小化放置后剩余的面积。
	BestAreaFit
	// BottomLeftRule 优先选择顶边最低、其次最靠左的位置。
	BottomLeftRule
	// ContactPointRule 最大化与页面边缘及已放置矩形的接触长度。
	ContactPointRule
)

// allHeuristics 是尺寸搜索时逐一尝试的完整策略集。
var allHeuristics = [...]Heuristic{
	BestShortSideFit,
	BestLongSideFit,
	BestAreaFit,
	BottomLeftRule,
	ContactPointRule,
}

func (h Heuristic) String() string {
	switch h {
	case BestShortSideFit:
		return "BestShortSideFit"
	case BestLongSideFit:
		return "BestLongSideFit"
	case BestAreaFit:
		return "BestAreaFit"
	case BottomLeftRule:
		return "BottomLeftRule"
	case ContactPointRule:
		return "ContactPointRule"
	}
	return "Unknown"
}

// placement 是启发式函数产生的候选放置。评分值只在单次放置的
// 排名中有意义，选中后才原子地写回矩形，避免半途放弃的评估
// 在矩形上留下残缺状态。
type placement struct {
	x, y          int
	width, height int
	rotated       bool
	score1        int
	score2        int
}

// fits 报告候选是否有效。height 为 0 表示放不下。
func (p *placement) fits() bool {
	return p.height > 0
}

// noPlacement 返回评分最差的无效候选。
func noPlacement() placement {
	return placement{score1: math.MaxInt, score2: math.MaxInt}
}

// findPlacement evaluates every free region for both the upright and, when
// permitted, the rotated orientation, keeping the best-scoring candidate.
// Lower scores win; the contact heuristic is negated to fit that convention.
func (b *maxRectsBin) findPlacement(width, height int, canRotate bool, heur Heuristic) placement {
	best := noPlacement()
	b.scoreOrientation(&best, width, height, false, heur)
	if b.rotation && canRotate && width != height {
		b.scoreOrientation(&best, height, width, true, heur)
	}
	return best
}

// scoreOrientation 用一个朝向与所有空闲区域逐一比较，更新最优候选。
func (b *maxRectsBin) scoreOrientation(best *placement, w, h int, rotated bool, heur Heuristic) {
	for i := range b.free {
		fr := &b.free[i]
		if fr.w < w || fr.h < h {
			continue
		}
		// A rect exactly filling a free region cannot be beaten.
		if fr.w == w && fr.h == h {
			*best = placement{x: fr.x, y: fr.y, width: w, height: h, rotated: rotated,
				score1: math.MinInt, score2: math.MinInt}
			return
		}
		s1, s2 := b.scoreRegion(fr, w, h, heur)
		if s1 < best.score1 || (s1 == best.score1 && s2 < best.score2) {
			*best = placement{x: fr.x, y: fr.y, width: w, height: h, rotated: rotated,
				score1: s1, score2: s2}
		}
	}
}

// scoreRegion 计算把 w x h 放进空闲区域左上角的两个评分。
// 调用方保证尺寸放得下。
func (b *maxRectsBin) scoreRegion(fr *freeRect, w, h int, heur Heuristic) (int, int) {
	switch heur {
	case BestShortSideFit:
		leftoverHoriz := fr.w - w
		leftoverVert := fr.h - h
		return min(leftoverHoriz, leftoverVert), max(leftoverHoriz, leftoverVert)
	case BestLongSideFit:
		leftoverHoriz := fr.w - w
		leftoverVert := fr.h - h
		return max(leftoverHoriz, leftoverVert), min(leftoverHoriz, leftoverVert)
	case BestAreaFit:
		leftoverHoriz := fr.w - w
		leftoverVert := fr.h - h
		return fr.w*fr.h - w*h, min(leftoverHoriz, leftoverVert)
	case BottomLeftRule:
		return fr.y + h, fr.x
	case ContactPointRule:
		// Larger contact is better, so negate for the minimizing comparison.
		return -b.contactScore(fr.x, fr.y, w, h), math.MaxInt
	}
	return math.MaxInt, math.MaxInt
}

// commonIntervalLength returns 0 if the two intervals are disjoint, or the
// length of their overlap otherwise.
func commonIntervalLength(i1start, i1end, i2start, i2end int) int {
	if i1end < i2start || i2end < i1start {
		return 0
	}
	return min(i1end, i2end) - max(i1start, i2start)
}

// contactScore 计算放置位置与页面边缘及相邻已放矩形的接触长度。
func (b *maxRectsBin) contactScore(x, y, width, height int) int {
	score := 0
	if x == 0 || x+width == b.width {
		score += height
	}
	if y == 0 || y+height == b.height {
		score += width
	}
	for i := range b.used {
		u := &b.used[i]
		if u.x == x+width || u.x+u.w == x {
			score += commonIntervalLength(u.y, u.y+u.h, y, y+height)
		}
		if u.y == y+height || u.y+u.h == y {
			score += commonIntervalLength(u.x, u.x+u.w, x, x+width)
		}
	}
	return score
}
