// Package artifact 保存调试用的中间图像
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/cv"
)

// Sink 调试图像输出
type Sink interface {
	// Save 保存图像，dir 与 name 仅作为提示，具体落盘方式由实现决定
	Save(img gocv.Mat, dir, name string) error
}

// Nop 丢弃所有图像
type Nop struct{}

// Save 不做任何事
func (Nop) Save(gocv.Mat, string, string) error { return nil }

// DirSink 把图像写入 Root 下的子目录
type DirSink struct {
	Root string
	// Ext 文件扩展名，默认 .png
	Ext string
}

// NewDirSink 创建目录输出
func NewDirSink(root string) *DirSink {
	return &DirSink{Root: root, Ext: ".png"}
}

// Save 写入 Root/dir/name{Ext}
func (s *DirSink) Save(img gocv.Mat, dir, name string) error {
	if s.Root == "" {
		return fmt.Errorf("调试输出目录未设置")
	}
	ext := s.Ext
	if ext == "" {
		ext = ".png"
	}
	if filepath.Ext(name) == "" {
		name += ext
	}
	path := filepath.Join(s.Root, sanitize(dir), sanitize(name))
	return cv.WriteImage(path, img)
}

// sanitize 去掉路径分隔符，防止写出 Root 之外
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "..", "_")
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, s)
}
