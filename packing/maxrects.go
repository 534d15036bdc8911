package packing

// freeRect 是页面上一块未被占用的轴对齐区域。
type freeRect struct {
	x, y, w, h int
}

// containsRect 判断 other 是否完全落在接收者内。
func (f *freeRect) containsRect(other *freeRect) bool {
	return f.x <= other.x && f.y <= other.y &&
		other.x+other.w <= f.x+f.w && other.y+other.h <= f.y+f.h
}

// entry 是打包过程中矩形的内部表示。探测不同页面尺寸时算法
// 只操作 entry 副本，选定结果后才写回调用方的 Rect。
type entry struct {
	idx       int // 调用方矩形列表中的下标
	w, h      int // 含间距的打包尺寸
	canRotate bool
}

// placed 把选定的候选放置绑定到对应的矩形下标。
type placed struct {
	idx int
	placement
}

// maxRectsBin 是单个页面的 MaxRects 打包状态：当前空闲区域集合
// 与已放置矩形。每次打包一页前重置为一个整页空闲区域。
type maxRectsBin struct {
	width, height int
	rotation      bool
	usedArea      int
	used          []freeRect
	free          []freeRect
	newFree       []freeRect
}

// reset 将箱体恢复为指定尺寸的单个整页空闲区域。
func (b *maxRectsBin) reset(width, height int) {
	b.width = width
	b.height = height
	b.usedArea = 0
	b.used = b.used[:0]
	b.newFree = b.newFree[:0]
	b.free = b.free[:0]
	b.free = append(b.free, freeRect{0, 0, width, height})
}

// place 提交一个选定的候选：所有与之相交的空闲区域被拆分为
// 至多四个剩余子区域，随后清理被完全包含的冗余区域。
func (b *maxRectsBin) place(p placement) {
	for i := 0; i < len(b.free); {
		if b.splitFree(b.free[i], p) {
			// Swap-remove keeps the scan index valid.
			last := len(b.free) - 1
			b.free[i] = b.free[last]
			b.free = b.free[:last]
		} else {
			i++
		}
	}
	b.pruneFree()
	b.used = append(b.used, freeRect{p.x, p.y, p.width, p.height})
	b.usedArea += p.width * p.height
}

// splitFree reports whether the free region intersects the placement and, if
// so, collects the up-to-four remainders (above, below, left, right of the
// intersection, clipped to the free region) into the pending list.
func (b *maxRectsBin) splitFree(fr freeRect, p placement) bool {
	if p.x >= fr.x+fr.w || p.x+p.width <= fr.x ||
		p.y >= fr.y+fr.h || p.y+p.height <= fr.y {
		return false
	}

	// Above the placement.
	if p.y > fr.y {
		b.addNewFree(freeRect{fr.x, fr.y, fr.w, p.y - fr.y})
	}
	// Below the placement.
	if p.y+p.height < fr.y+fr.h {
		b.addNewFree(freeRect{fr.x, p.y + p.height, fr.w, fr.y + fr.h - (p.y + p.height)})
	}
	// Left of the placement.
	if p.x > fr.x {
		b.addNewFree(freeRect{fr.x, fr.y, p.x - fr.x, fr.h})
	}
	// Right of the placement.
	if p.x+p.width < fr.x+fr.w {
		b.addNewFree(freeRect{p.x + p.width, fr.y, fr.x + fr.w - (p.x + p.width), fr.h})
	}
	return true
}

// addNewFree 把新的空闲区域加入待合并列表，丢弃与已有区域互相
// 包含的冗余项。
func (b *maxRectsBin) addNewFree(nf freeRect) {
	for i := 0; i < len(b.newFree); {
		if b.newFree[i].containsRect(&nf) {
			return
		}
		if nf.containsRect(&b.newFree[i]) {
			last := len(b.newFree) - 1
			b.newFree[i] = b.newFree[last]
			b.newFree = b.newFree[:last]
			continue
		}
		i++
	}
	b.newFree = append(b.newFree, nf)
}

// pruneFree 删除被旧空闲区域完全包含的新区域，然后合并两组列表。
// 新区域之间的包含关系已在 addNewFree 中处理。
func (b *maxRectsBin) pruneFree() {
	for i := range b.free {
		for j := 0; j < len(b.newFree); {
			if b.free[i].containsRect(&b.newFree[j]) {
				last := len(b.newFree) - 1
				b.newFree[j] = b.newFree[last]
				b.newFree = b.newFree[:last]
				continue
			}
			j++
		}
	}
	b.free = append(b.free, b.newFree...)
	b.newFree = b.newFree[:0]
}

// packFull 是完整搜索模式：每轮对所有剩余矩形评分，放置全局
// 最优者，直到放不下任何矩形。矩形数为 n 时每个启发式为 O(n²)，
// 但密度更高。
func (b *maxRectsBin) packFull(entries []entry, heur Heuristic) (out []placed, remaining []entry) {
	pending := make([]entry, len(entries))
	copy(pending, entries)

	for len(pending) > 0 {
		best := noPlacement()
		bestIdx := -1
		for i := range pending {
			p := b.findPlacement(pending[i].w, pending[i].h, pending[i].canRotate, heur)
			if !p.fits() {
				continue
			}
			if p.score1 < best.score1 || (p.score1 == best.score1 && p.score2 < best.score2) {
				best = p
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		b.place(best)
		out = append(out, placed{idx: pending[bestIdx].idx, placement: best})

		last := len(pending) - 1
		pending[bestIdx] = pending[last]
		pending = pending[:last]
	}
	return out, pending
}

// packFast 是快速模式：按调用方给定的固定顺序单遍贪心插入，
// 放不下的矩形收集为本页余量。每个启发式 O(n)。
func (b *maxRectsBin) packFast(entries []entry, heur Heuristic) (out []placed, remaining []entry) {
	for _, e := range entries {
		p := b.findPlacement(e.w, e.h, e.canRotate, heur)
		if !p.fits() {
			remaining = append(remaining, e)
			continue
		}
		b.place(p)
		out = append(out, placed{idx: e.idx, placement: p})
	}
	return out, remaining
}

// pack 按配置选择完整搜索或快速模式。
func (b *maxRectsBin) pack(entries []entry, heur Heuristic, fast bool) ([]placed, []entry) {
	if fast {
		return b.packFast(entries, heur)
	}
	return b.packFull(entries, heur)
}
