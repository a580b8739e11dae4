// Package vision 包装识别流水线
//
// 主要功能:
//   - 检测 (Detect): 按背景色切分候选区域，逐区域识别并合并重复结果
//   - 比对 (Identify): 用 ORB 特征与参考库逐标签比对，确认商品身份
//
// 基本用法:
//
//	vision.Initialize()
//	rec := recognize.NewRecognizer(classifier)
//	p := vision.NewPipeline(rec, vision.WithIndex(idx))
//	defer p.Close()
//
//	report, err := p.Detect(ctx, frame, region.BackgroundGreen)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range report.Detections {
//	    fmt.Printf("%s %.2f (%d, %d)\n", d.Label, d.Confidence, d.Result.X, d.Result.Y)
//	}
package vision

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/internal/logger"
	"github.com/zoeyai/packeye/pkg/vision/artifact"
	"github.com/zoeyai/packeye/pkg/vision/feature"
	"github.com/zoeyai/packeye/pkg/vision/recognize"
	"github.com/zoeyai/packeye/pkg/vision/region"
)

// ErrNotInitialized 未调用 Initialize
var ErrNotInitialized = errors.New("vision 未初始化，请先调用 Initialize")

var (
	initMu      sync.Mutex
	initialized bool
)

// Initialize 一次性初始化，可重复调用
func Initialize() {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return
	}
	logger.Info("vision 初始化: gocv %s, OpenCV %s", gocv.Version(), gocv.OpenCVVersion())
	initialized = true
}

func isInitialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

var (
	roiColor    = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	detectColor = color.RGBA{R: 0, G: 220, B: 0, A: 255}
)

// Pipeline 串联候选区域、识别、合并与特征比对
type Pipeline struct {
	rec       *recognize.Recognizer
	index     *feature.CandidateIndex
	extractor feature.Extractor
	matcher   feature.Matcher
	sink      artifact.Sink

	// mu 保护 extractor、matcher 与 owned
	mu sync.Mutex
	// 由 Pipeline 创建、需要释放的默认组件
	owned  []func() error
	frames atomic.Int64
}

// NewPipeline 创建流水线
//
// 未指定的特征提取器与匹配器在第一次 Identify 时才创建。
func NewPipeline(rec *recognize.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{rec: rec, sink: artifact.Nop{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// featureTools 返回特征提取器与匹配器，缺省时创建 ORB 与暴力匹配器
func (p *Pipeline) featureTools() (feature.Extractor, feature.Matcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extractor == nil {
		orb := feature.NewORBExtractor()
		p.extractor = orb
		p.owned = append(p.owned, orb.Close)
	}
	if p.matcher == nil {
		bf := feature.NewBFMatcher()
		p.matcher = bf
		p.owned = append(p.owned, bf.Close)
	}
	return p.extractor, p.matcher
}

// Detect 检测一帧中的所有商品
//
// ctx 只在阶段之间检查，单个阶段内部不会被打断。
func (p *Pipeline) Detect(ctx context.Context, frame gocv.Mat, hint region.Background) (*Report, error) {
	if !isInitialized() {
		return nil, ErrNotInitialized
	}
	if p.rec == nil {
		return nil, errors.New("未配置识别器")
	}
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dets, err := p.rec.RecognizeByBackground(frame, hint)
	if err != nil {
		return nil, fmt.Errorf("识别失败: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	merged := recognize.Merge(dets)

	report := &Report{
		Width:      frame.Cols(),
		Height:     frame.Rows(),
		Detections: make([]DetectResult, 0, len(merged)),
	}
	var boxes []artifact.Box
	for _, d := range dets {
		if d.IsMarker() {
			report.ROIs = append(report.ROIs, NewRectangle(d.Location))
			boxes = append(boxes, artifact.Box{Rect: d.Location, Color: roiColor})
		}
	}
	for _, d := range merged {
		report.Detections = append(report.Detections, newDetectResult(d))
		boxes = append(boxes, artifact.Box{
			Rect:  d.Location,
			Text:  fmt.Sprintf("%s %.2f", d.Label, d.Confidence),
			Color: detectColor,
		})
	}

	if _, nop := p.sink.(artifact.Nop); !nop {
		if err := p.saveAnnotated(frame, boxes); err != nil {
			logger.Warn("保存标注图失败: %v", err)
		}
	}

	report.Time = logger.Since(start)
	logger.Info("检测完成: %d 个区域, %d 个结果, 耗时 %.0fms", len(report.ROIs), len(report.Detections), report.Time)
	return report, nil
}

// Identify 与参考库比对，返回命中的标签
func (p *Pipeline) Identify(ctx context.Context, query gocv.Mat) ([]IdentifyResult, error) {
	if !isInitialized() {
		return nil, ErrNotInitialized
	}
	if p.index == nil {
		return nil, feature.ErrEmptyIndex
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	extractor, matcher := p.featureTools()
	matches, err := p.index.Match(query, extractor, matcher)
	if err != nil {
		return nil, err
	}
	return newIdentifyResults(matches), nil
}

// Close 释放默认组件，传入的参考库由调用方负责
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, c := range p.owned {
		errs = append(errs, c())
	}
	p.owned = nil
	return errors.Join(errs...)
}

func (p *Pipeline) saveAnnotated(frame gocv.Mat, boxes []artifact.Box) error {
	annotated, err := artifact.Annotate(frame, boxes)
	if err != nil {
		return err
	}
	defer annotated.Close()
	return p.sink.Save(annotated, "frames", fmt.Sprintf("frame_%06d", p.frames.Add(1)))
}
