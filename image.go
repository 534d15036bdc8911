package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/maruel/natural"

	"texpack/packing"
)

// Parallel 把 [start,end) 区间分批交给多个goroutine执行。
func Parallel(start, end int, fn func(i int)) {
	numGoroutines := runtime.NumCPU()
	if end-start < numGoroutines {
		// 任务数量少于CPU核心数时直接顺序执行
		for i := start; i < end; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	batchSize := (end - start) / numGoroutines
	if batchSize < 1 {
		batchSize = 1
	}
	for i := start; i < end; i += batchSize {
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for j := from; j < to && j < end; j++ {
				fn(j)
			}
		}(i, i+batchSize)
	}
	wg.Wait()
}

// alphaBBox 扫描4字节/像素缓冲的alpha通道，返回超过阈值像素的边界。
// NRGBA与RGBA的alpha字节位置相同，共用这一条扫描路径。
func alphaBBox(pix []uint8, stride int, bounds image.Rectangle, alphaThreshold uint32) (image.Rectangle, bool) {
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		i := (y-bounds.Min.Y)*stride + 3
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if pix[i] > uint8(alphaThreshold) {
				found = true
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
			i += 4
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), found
}

// GetImageBBox 检测图像的透明区域，返回非透明区域的边界
func GetImageBBox(img image.Image, alphaThreshold uint32) image.Rectangle {
	bounds := img.Bounds()
	if bounds.Empty() {
		return image.Rectangle{}
	}
	switch src := img.(type) {
	case *image.NRGBA:
		if bbox, found := alphaBBox(src.Pix, src.Stride, bounds, alphaThreshold); found {
			return bbox
		}
		return bounds // 图像完全透明
	case *image.RGBA:
		if bbox, found := alphaBBox(src.Pix, src.Stride, bounds, alphaThreshold); found {
			return bbox
		}
		return bounds
	}

	// 通用处理方式
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			a8 := a >> 8             // RGBA()返回16bit，转换为8bit
			if a8 > alphaThreshold { // 非完全透明的像素
				found = true
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if !found {
		return bounds // 图像完全透明
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// processImages 并行读取图片尺寸，开启修剪时同时计算透明边界。
// 返回的矩形以路径为Name、路径下标为Index。
func processImages(paths []string) ([]*packing.Rect, []image.Rectangle, error) {
	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			debugInfo.ProcessImageTime += time.Since(start)
		}()
	}
	sourceRects := make([]image.Rectangle, len(paths))
	rects := make([]*packing.Rect, len(paths))
	errChan := make(chan error, len(paths))
	Parallel(0, len(paths), func(i int) {
		path := paths[i]
		file, err := os.Open(path)
		if err != nil {
			errChan <- err
			return
		}
		if options.IsTrimTransparent {
			// 完全解码图片以分析透明区域
			src, err := imaging.Decode(file)
			file.Close()
			if err != nil {
				errChan <- fmt.Errorf("无法解码图片 %s: %v", path, err)
				return
			}
			trimRect := GetImageBBox(src, options.TransparencyThreshold)
			sourceRects[i] = trimRect
			rects[i] = packing.NewRect(path, i, trimRect.Dx(), trimRect.Dy())
		} else {
			// 只解码图片头部以获取尺寸信息
			cfg, _, err := image.DecodeConfig(file)
			file.Close()
			if err != nil {
				errChan <- fmt.Errorf("无法解码图片 %s: %v", path, err)
				return
			}
			sourceRects[i] = image.Rect(0, 0, cfg.Width, cfg.Height)
			rects[i] = packing.NewRect(path, i, cfg.Width, cfg.Height)
		}
	})

	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, nil, err
		}
	}
	return rects, sourceRects, nil
}

// readImageFiles 读取目录中的所有图片文件并返回对应的打包矩形
func readImageFiles() ([]*packing.Rect, []string, []image.Rectangle) {
	if _, err := os.Stat(options.InputDir); os.IsNotExist(err) {
		fmt.Printf("输入目录 %s 不存在\n", options.InputDir)
		os.Exit(1)
	}
	pattern := filepath.Join(options.InputDir, "*.png")
	imagePaths, _ := filepath.Glob(pattern)

	// 是否按文件名排序
	if options.IsFilesSort {
		sort.Sort(natural.StringSlice(imagePaths))
	}
	if len(imagePaths) == 0 {
		fmt.Printf("输入目录 %s 中没有找到任何图片文件\n", options.InputDir)
		os.Exit(1)
	}
	fmt.Printf("找到 %d 个图片文件\n", len(imagePaths))
	if options.IsTrimTransparent {
		fmt.Println("已开启透明区域裁切...")
	}
	rects, sourceRects, err := processImages(imagePaths)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	return rects, imagePaths, sourceRects
}

// writeAtlasImage 把单页的精灵绘制到图集图像并编码为PNG，
// 返回每个精灵的元数据。
func writeAtlasImage(page *packing.Page, imagePaths []string, sourceRects []image.Rectangle, outputPath string) (map[string]SpriteInfo, error) {
	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			debugInfo.CreateAtlasImageTime += time.Since(start)
		}()
	}
	// 输出顺序稳定，便于元数据对比
	outputRects := append([]*packing.Rect(nil), page.OutputRects...)
	packing.SortRectNames(outputRects, options.FlattenPaths)

	sprites := make(map[string]SpriteInfo, len(outputRects))
	dstImage := imaging.New(page.Width, page.Height, color.NRGBA{0, 0, 0, 0})

	var mu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, len(outputRects))
	semaphore := make(chan struct{}, runtime.NumCPU())
	for _, rect := range outputRects {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(r *packing.Rect) {
			defer wg.Done()
			defer func() { <-semaphore }()
			// 矩形的Index是路径的索引
			path := imagePaths[r.Index]
			file, err := os.Open(path)
			if err != nil {
				errChan <- fmt.Errorf("%s: %v", path, err)
				return
			}
			srcImage, err := imaging.Decode(file)
			file.Close()
			if err != nil {
				errChan <- fmt.Errorf("%s: %v", path, err)
				return
			}

			origBounds := srcImage.Bounds()
			srcRect := sourceRects[r.Index]

			spriteInfo := SpriteInfo{Name: filepath.Base(path)}
			spriteInfo.SourceSize.W = origBounds.Dx()
			spriteInfo.SourceSize.H = origBounds.Dy()
			spriteInfo.Region.X = r.X
			spriteInfo.Region.Y = r.Y
			spriteInfo.Region.W = r.Width
			spriteInfo.Region.H = r.Height
			spriteInfo.Rotated = r.Rotated

			// 元数据中的裁剪信息保持原始朝向
			isTrimmed := srcRect.Min.X > 0 || srcRect.Min.Y > 0 ||
				srcRect.Dx() < origBounds.Dx() || srcRect.Dy() < origBounds.Dy()
			if isTrimmed {
				spriteInfo.Trimmed = true
				spriteInfo.SourceRect.X = srcRect.Min.X
				spriteInfo.SourceRect.Y = srcRect.Min.Y
				spriteInfo.SourceRect.W = srcRect.Dx()
				spriteInfo.SourceRect.H = srcRect.Dy()
			}

			if r.Rotated {
				// 顺时针旋转90°，并把裁剪区域换算到旋转后的坐标系
				srcImage = imaging.Rotate270(srcImage)
				origHeight := origBounds.Dy()
				newMinX := origHeight - srcRect.Min.Y - srcRect.Dy()
				newMinY := srcRect.Min.X
				srcRect = image.Rect(newMinX, newMinY, newMinX+srcRect.Dy(), newMinY+srcRect.Dx())
			}

			dstRect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)

			mu.Lock()
			draw.Draw(dstImage, dstRect, srcImage, srcRect.Min, draw.Src)
			sprites[path] = spriteInfo
			mu.Unlock()
		}(rect)
	}
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := imaging.Encode(file, dstImage, imaging.PNG); err != nil {
		return nil, err
	}
	return sprites, nil
}
