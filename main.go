package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"texpack/packing"
)

const (
	VERSION = "0.1.0"
)

var (
	options   Options
	debugInfo = DebugInfo{}
)

type DebugInfo struct {
	IsDebug              bool
	TotalTime            time.Duration
	PackTime             time.Duration
	ProcessImageTime     time.Duration
	CreateAtlasImageTime time.Duration
	CreateJsonTime       time.Duration
}

// SpriteInfo 存储精灵图的信息
type SpriteInfo struct {
	Name   string `json:"name"`
	Region struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"region"`
	SourceSize struct {
		W int `json:"w"`
		H int `json:"h"`
	} `json:"sourceSize"`
	SourceRect struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"sourceRect,omitempty"`
	Trimmed bool `json:"trimmed"`
	Rotated bool `json:"rotated"`
}

// AtlasData 存储一个图集页的信息
type AtlasData struct {
	Page      string                `json:"page"`
	Sprites   map[string]SpriteInfo `json:"sprites"`
	Occupancy float64               `json:"occupancy"`
	TotalSize struct {
		W int `json:"w"`
		H int `json:"h"`
	} `json:"totalSize"`
}

// MultiAtlasData 存储多个图集页的信息
type MultiAtlasData struct {
	Meta struct {
		Version   string `json:"version"`
		Timestamp string `json:"timestamp"`
	} `json:"meta"`
	Atlases []AtlasData `json:"atlases"`
}

// generateMultiAtlasJSON 生成包含多个图集页信息的JSON元数据
func generateMultiAtlasJSON(atlases []AtlasData, outputPath string) error {
	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			debugInfo.CreateJsonTime = time.Since(start)
		}()
	}
	data := MultiAtlasData{Atlases: atlases}
	data.Meta.Version = VERSION
	data.Meta.Timestamp = time.Now().Format("2006-01-02 15:04:05")

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, jsonData, 0644)
}

// outputResult 输出单页打包结果
func outputResult(index int, page *packing.Page) {
	fmt.Printf("图集 #%d 尺寸: %dx%d\n", index, page.Width, page.Height)
	fmt.Printf("空间利用率: %.2f%%\n", page.Occupancy*100)
	fmt.Printf("已打包矩形数量: %d\n", len(page.OutputRects))
	fmt.Printf("未放入本页矩形数量: %d\n\n", len(page.RemainingRects))
}

// packRects 按配置选择打包器并执行打包
func packRects(rects []*packing.Rect) []*packing.Page {
	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			debugInfo.PackTime += time.Since(start)
		}()
	}
	settings := options.toSettings()
	var packer packing.Packer
	if settings.Grid {
		p, err := packing.NewGridPacker(settings)
		if err != nil {
			fmt.Printf("创建打包器失败: %v\n", err)
			os.Exit(1)
		}
		packer = p
	} else {
		p, err := packing.NewMaxRectsPacker(settings)
		if err != nil {
			fmt.Printf("创建打包器失败: %v\n", err)
			os.Exit(1)
		}
		p.SetProgressListener(func(progress float64) bool {
			if debugInfo.IsDebug {
				fmt.Printf("打包进度: %.0f%%\n", progress*100)
			}
			return false
		})
		packer = p
	}
	pages, err := packer.Pack(rects)
	if err != nil {
		fmt.Printf("打包失败: %v\n", err)
		os.Exit(1)
	}
	return pages
}

func flagArgs() {
	// 定义命令行参数
	configPath := flag.String("config", "", "TOML配置文件路径")
	unpackPath := flag.String("unpack", "", "解包路径")
	inputDirPtr := flag.String("input", "input", "输入目录")
	outputDirPtr := flag.String("output", "output", "输出目录")
	paddingXPtr := flag.Int("padding-x", 0, "水平间距")
	paddingYPtr := flag.Int("padding-y", 0, "垂直间距")
	edgePadPtr := flag.Bool("edge-padding", false, "页面边缘也保留间距")
	dupPadPtr := flag.Bool("duplicate-padding", false, "间距用于复制边缘像素")
	trimPtr := flag.Bool("trim", true, "修剪透明部分")
	thresholdPtr := flag.Uint("threshold", 0, "透明度阈值")
	sortPtr := flag.Bool("sort", true, "按文件名排序")
	minWidthPtr := flag.Int("min-width", 16, "页面最小宽度")
	minHeightPtr := flag.Int("min-height", 16, "页面最小高度")
	widthPtr := flag.Int("width", 4096, "页面最大宽度")
	heightPtr := flag.Int("height", 4096, "页面最大高度")
	rotationPtr := flag.Bool("rotate", true, "允许矩形旋转")
	potPtr := flag.Bool("pow-of-two", false, "页面尺寸使用2的幂")
	mo4Ptr := flag.Bool("multiple-of-four", false, "页面尺寸使用4的倍数")
	squarePtr := flag.Bool("square", false, "强制页面为正方形")
	fastPtr := flag.Bool("fast", false, "使用单遍贪心模式")
	gridPtr := flag.Bool("grid", false, "使用均匀网格打包")
	flattenPtr := flag.Bool("flatten-paths", false, "输出排序时忽略目录")
	debugPtr := flag.Bool("debug", false, "输出耗时统计")
	flag.Parse()

	options = DefaultOptions()
	// 配置文件先于命令行参数生效
	if *configPath != "" {
		if err := loadConfig(*configPath, &options); err != nil {
			fmt.Printf("读取配置文件失败: %v\n", err)
			os.Exit(1)
		}
	}
	// 显式给出的命令行参数覆盖配置文件
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	apply := func(name string, fn func()) {
		if explicit[name] || *configPath == "" {
			fn()
		}
	}
	apply("unpack", func() { options.UnpackPath = *unpackPath })
	apply("input", func() { options.InputDir = *inputDirPtr })
	apply("output", func() { options.OutputDir = *outputDirPtr })
	apply("padding-x", func() { options.PaddingX = *paddingXPtr })
	apply("padding-y", func() { options.PaddingY = *paddingYPtr })
	apply("edge-padding", func() { options.EdgePadding = *edgePadPtr })
	apply("duplicate-padding", func() { options.DuplicatePadding = *dupPadPtr })
	apply("trim", func() { options.IsTrimTransparent = *trimPtr })
	apply("threshold", func() { options.TransparencyThreshold = uint32(*thresholdPtr) })
	apply("sort", func() { options.IsFilesSort = *sortPtr })
	apply("min-width", func() { options.AtlasMinWidth = *minWidthPtr })
	apply("min-height", func() { options.AtlasMinHeight = *minHeightPtr })
	apply("width", func() { options.AtlasMaxWidth = *widthPtr })
	apply("height", func() { options.AtlasMaxHeight = *heightPtr })
	apply("rotate", func() { options.IsAllowRotate = *rotationPtr })
	apply("pow-of-two", func() { options.PowerOfTwo = *potPtr })
	apply("multiple-of-four", func() { options.MultipleOfFour = *mo4Ptr })
	apply("square", func() { options.Square = *squarePtr })
	apply("fast", func() { options.Fast = *fastPtr })
	apply("grid", func() { options.Grid = *gridPtr })
	apply("flatten-paths", func() { options.FlattenPaths = *flattenPtr })
	apply("debug", func() { debugInfo.IsDebug = *debugPtr })

	// 解包
	if options.UnpackPath != "" {
		if err := unpack(); err != nil {
			fmt.Printf("解包失败: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
}

func main() {
	flagArgs()

	if debugInfo.IsDebug {
		start := time.Now()
		defer func() {
			debugInfo.TotalTime = time.Since(start)
			fmt.Printf("图片预处理(裁切等)耗时: %v\n", debugInfo.ProcessImageTime)
			fmt.Printf("算法耗时: %v\n", debugInfo.PackTime)
			fmt.Printf("图集创建耗时: %v\n", debugInfo.CreateAtlasImageTime)
			fmt.Printf("JSON元数据创建耗时: %v\n", debugInfo.CreateJsonTime)
			fmt.Printf("总耗时: %v\n", debugInfo.TotalTime)
		}()
	}

	// 读取输入目录中的图片文件
	rects, imagePaths, sourceRects := readImageFiles()

	// 打包并输出每页结果
	pages := packRects(rects)
	for i, page := range pages {
		outputResult(i, page)
	}

	// 确保输出目录存在
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		fmt.Printf("创建输出目录失败: %v\n", err)
		os.Exit(1)
	}

	atlases := make([]AtlasData, 0, len(pages))
	for i, page := range pages {
		var imageName string
		if len(pages) == 1 {
			imageName = "atlas.png"
		} else {
			imageName = fmt.Sprintf("atlas_%d.png", i)
		}
		outputPath := filepath.Join(options.OutputDir, imageName)
		sprites, err := writeAtlasImage(page, imagePaths, sourceRects, outputPath)
		if err != nil {
			fmt.Printf("生成图集 #%d 失败: %v\n", i, err)
			os.Exit(1)
		}
		atlas := AtlasData{Page: imageName, Sprites: sprites, Occupancy: page.Occupancy}
		atlas.TotalSize.W = page.Width
		atlas.TotalSize.H = page.Height
		atlases = append(atlases, atlas)
	}

	// 图集的JSON元数据
	multiAtlasJsonPath := filepath.Join(options.OutputDir, "atlases.json")
	if err := generateMultiAtlasJSON(atlases, multiAtlasJsonPath); err != nil {
		fmt.Printf("生成JSON元数据失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("- 图集元数据: %s\n\n", multiAtlasJsonPath)
}
