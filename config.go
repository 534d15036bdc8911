package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"texpack/packing"
)

// Options 是命令行工具的完整配置，可由TOML配置文件与命令行参数
// 共同填充。
type Options struct {
	UnpackPath            string `toml:"-"`                 // 解包路径
	InputDir              string `toml:"input"`             // 输入目录
	OutputDir             string `toml:"output"`            // 输出目录
	AtlasMinWidth         int    `toml:"min_width"`         // 页面最小宽度
	AtlasMinHeight        int    `toml:"min_height"`        // 页面最小高度
	AtlasMaxWidth         int    `toml:"max_width"`         // 页面最大宽度
	AtlasMaxHeight        int    `toml:"max_height"`        // 页面最大高度
	PaddingX              int    `toml:"padding_x"`         // 水平间距
	PaddingY              int    `toml:"padding_y"`         // 垂直间距
	EdgePadding           bool   `toml:"edge_padding"`      // 页面边缘间距
	DuplicatePadding      bool   `toml:"duplicate_padding"` // 复制边缘像素的间距
	IsFilesSort           bool   `toml:"sort"`              // 是否按文件名排序
	IsAllowRotate         bool   `toml:"rotation"`          // 是否允许旋转
	IsTrimTransparent     bool   `toml:"trim"`              // 是否修剪透明部分
	TransparencyThreshold uint32 `toml:"threshold"`         // 透明度阈值
	PowerOfTwo            bool   `toml:"pow_of_two"`        // 页面尺寸使用2的幂
	MultipleOfFour        bool   `toml:"multiple_of_four"`  // 页面尺寸使用4的倍数
	Square                bool   `toml:"square"`            // 强制正方形页面
	Fast                  bool   `toml:"fast"`              // 单遍贪心模式
	Grid                  bool   `toml:"grid"`              // 均匀网格打包
	FlattenPaths          bool   `toml:"flatten_paths"`     // 输出排序时忽略目录
}

// DefaultOptions 返回与命令行默认值一致的配置。
func DefaultOptions() Options {
	return Options{
		InputDir:          "input",
		OutputDir:         "output",
		AtlasMinWidth:     16,
		AtlasMinHeight:    16,
		AtlasMaxWidth:     4096,
		AtlasMaxHeight:    4096,
		IsFilesSort:       true,
		IsAllowRotate:     true,
		IsTrimTransparent: true,
	}
}

// loadConfig 从TOML文件读取配置，文件中未出现的键保持原值。
func loadConfig(path string, opts *Options) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("配置文件 %s 不可读: %w", path, err)
	}
	meta, err := toml.DecodeFile(path, opts)
	if err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("配置文件 %s 含未知键 %v", path, undecoded)
	}
	return nil
}

// toSettings 把工具配置转换为打包引擎的Settings。
func (o *Options) toSettings() packing.Settings {
	return packing.Settings{
		Rotation:         o.IsAllowRotate,
		PowerOfTwo:       o.PowerOfTwo,
		MultipleOfFour:   o.MultipleOfFour,
		Square:           o.Square,
		Fast:             o.Fast,
		Grid:             o.Grid,
		EdgePadding:      o.EdgePadding,
		DuplicatePadding: o.DuplicatePadding,
		FlattenPaths:     o.FlattenPaths,
		MinWidth:         o.AtlasMinWidth,
		MinHeight:        o.AtlasMinHeight,
		MaxWidth:         o.AtlasMaxWidth,
		MaxHeight:        o.AtlasMaxHeight,
		PaddingX:         o.PaddingX,
		PaddingY:         o.PaddingY,
	}
}
