package ocr

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	goocr "github.com/getcharzp/go-ocr"

	"github.com/zoeyai/packeye/internal/logger"
)

// ErrClosed 识别器已关闭
var ErrClosed = errors.New("OCR 识别器已关闭")

// Engine go-ocr 引擎中用到的部分
type Engine interface {
	RunOCR(img image.Image) ([]goocr.RecResult, error)
	Destroy()
}

// TextRecognizer OCR 识别器，引擎不支持并发，调用串行化
type TextRecognizer struct {
	mu     sync.Mutex
	engine Engine
}

// NewTextRecognizer 按配置加载 PaddleOCR 引擎
func NewTextRecognizer(config Config) (*TextRecognizer, error) {
	engine, err := goocr.NewPaddleOcrEngine(goocr.Config{
		OnnxRuntimeLibPath: config.OnnxRuntimeLibPath,
		DetModelPath:       config.DetModelPath,
		RecModelPath:       config.RecModelPath,
		DictPath:           config.DictPath,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 引擎失败: %w", err)
	}
	logger.Info("OCR 引擎初始化成功")
	return NewWithEngine(engine), nil
}

// NewWithEngine 使用已有引擎创建识别器
func NewWithEngine(engine Engine) *TextRecognizer {
	return &TextRecognizer{engine: engine}
}

// Recognize 识别图像中的所有文字
func (r *TextRecognizer) Recognize(img image.Image) ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	raw, err := r.engine.RunOCR(img)
	if err != nil {
		logger.LogEvent("OCR", false, logger.Since(start), "识别失败")
		return nil, fmt.Errorf("OCR 识别失败: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, rr := range raw {
		results = append(results, Result{
			Text:       rr.Text,
			Confidence: float64(rr.Score),
			Box:        rr.Box,
		})
	}

	logger.LogEvent("OCR", true, logger.Since(start), fmt.Sprintf("识别到 %d 个文本", len(results)))
	return results, nil
}

// Close 释放引擎
func (r *TextRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		r.engine.Destroy()
		r.engine = nil
	}
	return nil
}
