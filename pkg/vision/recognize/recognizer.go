package recognize

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/internal/logger"
	"github.com/zoeyai/packeye/pkg/vision/artifact"
	"github.com/zoeyai/packeye/pkg/vision/cv"
	"github.com/zoeyai/packeye/pkg/vision/geom"
	"github.com/zoeyai/packeye/pkg/vision/region"
)

const (
	// DefaultInputSize 模型输入边长
	DefaultInputSize = 300
	// DefaultMinConfidence 最低置信度
	DefaultMinConfidence = 0.1
)

var recognizedColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}

// Recognizer 在画面或 ROI 上运行分类器并把结果映射回画面坐标
type Recognizer struct {
	classifier     Classifier
	inputW         int
	inputH         int
	minConfidence  float32
	rotation       float64
	maintainAspect bool
	workers        int
	proposer       *region.Proposer
	sink           artifact.Sink
}

// Option 识别器选项
type Option func(*Recognizer)

// NewRecognizer 创建识别器
func NewRecognizer(classifier Classifier, opts ...Option) *Recognizer {
	r := &Recognizer{
		classifier:    classifier,
		inputW:        DefaultInputSize,
		inputH:        DefaultInputSize,
		minConfidence: DefaultMinConfidence,
		workers:       1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.proposer == nil {
		r.proposer = region.NewProposer()
	}
	return r
}

// WithInputSize 设置模型输入尺寸
func WithInputSize(w, h int) Option {
	return func(r *Recognizer) {
		r.inputW, r.inputH = w, h
	}
}

// WithMinConfidence 设置最低置信度，低于该值的结果被静默丢弃
func WithMinConfidence(c float32) Option {
	return func(r *Recognizer) {
		r.minConfidence = c
	}
}

// WithRotation 设置画面相对设备的顺时针旋转角度
func WithRotation(degrees float64) Option {
	return func(r *Recognizer) {
		r.rotation = degrees
	}
}

// WithMaintainAspect 缩放时保持宽高比
func WithMaintainAspect(enabled bool) Option {
	return func(r *Recognizer) {
		r.maintainAspect = enabled
	}
}

// WithWorkers 设置并行识别 ROI 的 goroutine 数
func WithWorkers(n int) Option {
	return func(r *Recognizer) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithProposer 设置候选区域生成器
func WithProposer(p *region.Proposer) Option {
	return func(r *Recognizer) {
		r.proposer = p
	}
}

// WithArtifactSink 设置调试图像输出，每个 ROI 保存原始裁剪图和标注了识别结果的裁剪图
func WithArtifactSink(s artifact.Sink) Option {
	return func(r *Recognizer) {
		r.sink = s
	}
}

// RecognizeFrame 在整幅图像上识别
//
// 图像经仿射变换采样到模型输入尺寸，结果经逆变换映射回图像坐标并裁剪到图像范围内。
func (r *Recognizer) RecognizeFrame(frame gocv.Mat) ([]Detection, error) {
	start := time.Now()
	w, h := frame.Cols(), frame.Rows()

	fwd, err := geom.BuildTransform(w, h, r.inputW, r.inputH, r.rotation, r.maintainAspect)
	if err != nil {
		return nil, err
	}
	inv, err := geom.Invert(fwd)
	if err != nil {
		return nil, err
	}

	// 每次调用独占自己的输入缓冲
	input := gocv.NewMat()
	defer input.Close()
	m := fwd.Mat()
	defer m.Close()
	gocv.WarpAffine(frame, &input, m, image.Pt(r.inputW, r.inputH))

	raw, err := r.classifier.Recognize(input)
	if err != nil {
		logger.LogEvent("REC", false, logger.Since(start), err.Error())
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}

	out := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < r.minConfidence {
			continue
		}
		d.Location = inv.MapRect(d.Location).Clamp(float32(w), float32(h))
		out = append(out, d)
	}

	logger.LogEvent("REC", true, logger.Since(start),
		fmt.Sprintf("%dx%d 原始 %d 条，保留 %d 条", w, h, len(raw), len(out)))
	return out, nil
}

// RecognizeRegion 裁剪出 roi 后识别，结果平移回画面坐标
func (r *Recognizer) RecognizeRegion(frame gocv.Mat, roi geom.Rect) ([]Detection, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	area := roi.ImageRect().Intersect(bounds)
	if area.Empty() {
		return nil, nil
	}

	crop := cv.CropRect(frame, roi)
	defer crop.Close()

	suffix := fmt.Sprintf("%d_%d_%dx%d", area.Min.X, area.Min.Y, area.Dx(), area.Dy())
	saving := r.saving()
	if saving {
		if err := r.sink.Save(crop, "rois", "roi_"+suffix); err != nil {
			logger.Warn("保存 ROI 调试图失败: %v", err)
		}
	}

	dets, err := r.RecognizeFrame(crop)
	if err != nil {
		return nil, err
	}
	if saving {
		r.saveRecognized(crop, dets, "rec_"+suffix)
	}

	// 裁剪区域按整数像素取整，平移后再收回 roi 内
	dx, dy := float32(area.Min.X), float32(area.Min.Y)
	for i := range dets {
		dets[i].Location = dets[i].Location.Offset(dx, dy).ClampTo(roi)
	}
	return dets, nil
}

func (r *Recognizer) saving() bool {
	if r.sink == nil {
		return false
	}
	_, nop := r.sink.(artifact.Nop)
	return !nop
}

// saveRecognized 保存标注了识别结果的 ROI 裁剪图，坐标为裁剪图坐标
func (r *Recognizer) saveRecognized(crop gocv.Mat, dets []Detection, name string) {
	boxes := make([]artifact.Box, len(dets))
	for i, d := range dets {
		boxes[i] = artifact.Box{
			Rect:  d.Location,
			Text:  fmt.Sprintf("%s %.2f", d.Label, d.Confidence),
			Color: recognizedColor,
		}
	}
	annotated, err := artifact.Annotate(crop, boxes)
	if err != nil {
		logger.Warn("标注 ROI 调试图失败: %v", err)
		return
	}
	defer annotated.Close()
	if err := r.sink.Save(annotated, "rois", name); err != nil {
		logger.Warn("保存 ROI 调试图失败: %v", err)
	}
}

// RecognizeRegions 依次识别每个 ROI
//
// 每个 ROI 先输出一个边界标记，再输出该 ROI 的检测结果；并行时也保持 ROI 顺序。
func (r *Recognizer) RecognizeRegions(frame gocv.Mat, rois []geom.Rect) ([]Detection, error) {
	results := make([][]Detection, len(rois))
	errs := make([]error, len(rois))

	if r.workers <= 1 || len(rois) <= 1 {
		for i, roi := range rois {
			results[i], errs[i] = r.RecognizeRegion(frame, roi)
			if errs[i] != nil {
				break
			}
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for n := 0; n < min(r.workers, len(rois)); n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					results[i], errs[i] = r.RecognizeRegion(frame, rois[i])
				}
			}()
		}
		for i := range rois {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	var out []Detection
	for i, roi := range rois {
		if errs[i] != nil {
			return nil, fmt.Errorf("识别 ROI %v 失败: %w", roi, errs[i])
		}
		out = append(out, Marker(roi))
		out = append(out, results[i]...)
	}
	return out, nil
}

// RecognizeByBackground 按背景色生成 ROI 后逐个识别
func (r *Recognizer) RecognizeByBackground(frame gocv.Mat, hint region.Background) ([]Detection, error) {
	rois := r.proposer.Propose(frame, hint)
	return r.RecognizeRegions(frame, rois)
}
