package feature

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zoeyai/packeye/internal/logger"
	"github.com/zoeyai/packeye/pkg/vision/cv"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// LabelFromFilename 取文件名中第一个 '_' 之前的部分作为标签
// "productA_front.jpg" -> "productA"，没有 '_' 时取去掉扩展名的文件名
func LabelFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.IndexByte(base, '_'); i >= 0 {
		return base[:i]
	}
	return base
}

// LoadDir 加载目录下的所有参考图并构建参考库
//
// 按文件名顺序加载，任一图片读取或提取失败都会中止构建。
func LoadDir(dir string, extractor Extractor) (*CandidateIndex, error) {
	start := time.Now()

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取参考图目录失败: %w", err)
	}

	b := NewBuilder(extractor)
	for _, f := range files {
		if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		path := filepath.Join(dir, f.Name())
		img, err := cv.OpenImage(path)
		if err != nil {
			b.Discard()
			return nil, fmt.Errorf("加载参考图失败: %w", err)
		}
		err = b.Add(LabelFromFilename(f.Name()), img)
		img.Close()
		if err != nil {
			return nil, err
		}
	}

	idx, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("构建参考库失败 [%s]: %w", dir, err)
	}
	logger.Info("参考库加载完成: %d 个标签, %d 张图, 耗时 %.0fms", len(idx.labels), idx.Len(), logger.Since(start))
	return idx, nil
}
