package packing

// GridPacker 把所有矩形放进按最大矩形尺寸统一划分的网格单元里。
// 质量低于 MaxRects（每个单元都按最大矩形留空间），但没有搜索，
// 每页 O(n)，运行时间确定，结果完全可复现。
type GridPacker struct {
	settings Settings
}

// NewGridPacker 创建网格打包器。配置不一致时返回错误。
func NewGridPacker(settings Settings) (*GridPacker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &GridPacker{settings: settings}, nil
}

// Pack 按行主序布置矩形：单元超出最大页面宽度时换行，新行超出
// 最大页面高度时换页。不做旋转，不做重评分。
func (g *GridPacker) Pack(rects []*Rect) ([]*Page, error) {
	if err := g.settings.Validate(); err != nil {
		return nil, err
	}
	if len(rects) == 0 {
		return nil, nil
	}
	s := &g.settings
	maxW, maxH := s.effectiveMaxSize()

	// 单元尺寸 = 全体矩形的最大宽/高 + 间距。
	cellW, cellH := 0, 0
	for _, r := range rects {
		cellW = max(cellW, r.Width)
		cellH = max(cellH, r.Height)
	}
	cellW += s.PaddingX
	cellH += s.PaddingY
	if cellW > maxW || cellH > maxH {
		// 单元尺寸的宽高来自不同矩形，报错指向真正超限的那一个。
		for _, r := range rects {
			if r.Width+s.PaddingX > maxW || r.Height+s.PaddingY > maxH {
				return nil, &RectTooBigError{
					Name: r.Name, Index: r.Index,
					Width: r.Width, Height: r.Height,
					MaxWidth: s.MaxWidth, MaxHeight: s.MaxHeight,
				}
			}
		}
	}

	var pages []*Page
	page := &Page{}
	x, y := 0, 0
	placedArea := 0
	flush := func() {
		if len(page.OutputRects) == 0 {
			return
		}
		page.Width = s.alignSize(page.Width)
		page.Height = s.alignSize(page.Height)
		page.Occupancy = float64(placedArea) / float64(page.Width*page.Height)
		pages = append(pages, page)
		page = &Page{}
		placedArea = 0
	}
	for i, r := range rects {
		if x+cellW > maxW {
			x = 0
			y += cellH
		}
		if y+cellH > maxH {
			// 本页已满，余下矩形从新页左上角继续。
			page.RemainingRects = append(page.RemainingRects, rects[i:]...)
			flush()
			x, y = 0, 0
		}
		r.X = x
		r.Y = y
		r.Rotated = false
		page.OutputRects = append(page.OutputRects, r)
		placedArea += r.Area()
		page.Width = max(page.Width, x+r.Width)
		page.Height = max(page.Height, y+r.Height)
		x += cellW
	}
	flush()
	return pages, nil
}
