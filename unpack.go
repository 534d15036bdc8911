package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// unpack 解包图集：依据JSON元数据把每个精灵还原为独立PNG
func unpack() error {
	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			fmt.Printf("解包耗时: %s\n", time.Since(start))
		}()
	}
	if options.UnpackPath == "" {
		return fmt.Errorf("未指定解包路径")
	}

	// 读取JSON文件
	jsonData, err := os.ReadFile(options.UnpackPath)
	if err != nil {
		return fmt.Errorf("读取图集JSON文件失败: %v", err)
	}
	var multiAtlasData MultiAtlasData
	if err := json.Unmarshal(jsonData, &multiAtlasData); err != nil {
		return fmt.Errorf("解析JSON失败: %v", err)
	}

	// 创建输出目录
	outputDir := options.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %v", err)
	}

	// 处理每个图集页
	for _, atlas := range multiAtlasData.Atlases {
		atlasDir := filepath.Dir(options.UnpackPath)
		atlasImagePath := filepath.Join(atlasDir, atlas.Page)

		atlasFile, err := os.Open(atlasImagePath)
		if err != nil {
			return fmt.Errorf("打开图集图片失败: %v", err)
		}
		atlasImg, _, err := image.Decode(atlasFile)
		atlasFile.Close()
		if err != nil {
			return fmt.Errorf("解码图集图片失败: %v", err)
		}

		// 处理每个子图
		for _, sprite := range atlas.Sprites {
			// 从图集中取出精灵区域
			var subImg image.Image = imaging.Crop(atlasImg, image.Rect(
				sprite.Region.X, sprite.Region.Y,
				sprite.Region.X+sprite.Region.W, sprite.Region.Y+sprite.Region.H))
			// 旋转过的精灵转回原始朝向
			if sprite.Rotated {
				subImg = imaging.Rotate90(subImg)
			}
			// 被裁剪过的精灵还原到原始画布
			if sprite.Trimmed {
				finalImg := image.NewNRGBA(image.Rect(0, 0, sprite.SourceSize.W, sprite.SourceSize.H))
				draw.Draw(finalImg, finalImg.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 0}), image.Point{}, draw.Src)
				draw.Draw(finalImg, image.Rect(sprite.SourceRect.X, sprite.SourceRect.Y,
					sprite.SourceRect.X+sprite.SourceRect.W, sprite.SourceRect.Y+sprite.SourceRect.H),
					subImg, subImg.Bounds().Min, draw.Src)
				subImg = finalImg
			}
			// 保存子图
			outputPath := filepath.Join(outputDir, sprite.Name)
			if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return fmt.Errorf("创建输出子目录失败: %v", err)
			}
			outFile, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("创建输出文件失败: %v", err)
			}
			if err := png.Encode(outFile, subImg); err != nil {
				outFile.Close()
				return fmt.Errorf("编码PNG失败: %v", err)
			}
			outFile.Close()
		}
	}
	fmt.Printf("图集解包完成，输出到: %s\n", outputDir)
	return nil
}
