package region

import (
	"fmt"
	"image"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/internal/logger"
	"github.com/zoeyai/packeye/pkg/vision/geom"
)

const (
	// DefaultMinArea 小于等于该面积的 ROI 被丢弃
	DefaultMinArea = 2048
	// DefaultMaxArea 开启切分时，大于该面积的 ROI 会额外切成半幅和四宫格
	DefaultMaxArea = 2048 * 1536
	// DefaultDilateMargin 轮廓外接矩形向外扩展的像素数
	DefaultDilateMargin = 256
	// DefaultDilateIterations 膨胀次数
	DefaultDilateIterations = 2
)

// DefaultDilateKernel 椭圆膨胀核尺寸 (宽 x 高)
var DefaultDilateKernel = image.Pt(8, 3)

// Proposer 候选区域生成器
type Proposer struct {
	// Segment 是否按背景色分割；关闭时直接使用整帧
	Segment bool
	// Tile 是否切分超大 ROI
	Tile bool
	// MinArea ROI 最小面积（不含）
	MinArea float32
	// MaxArea 切分阈值
	MaxArea float32
	// DilateMargin 外接矩形扩展边距
	DilateMargin int
	// DilateKernel 椭圆膨胀核尺寸，任一边不大于 0 时不膨胀
	DilateKernel image.Point
	// DilateIterations 膨胀次数
	DilateIterations int
}

// Option 生成器选项
type Option func(*Proposer)

// NewProposer 创建候选区域生成器，默认不分割、不切分
func NewProposer(opts ...Option) *Proposer {
	p := &Proposer{
		MinArea:          DefaultMinArea,
		MaxArea:          DefaultMaxArea,
		DilateMargin:     DefaultDilateMargin,
		DilateKernel:     DefaultDilateKernel,
		DilateIterations: DefaultDilateIterations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithSegmentation 开启或关闭背景色分割
func WithSegmentation(enabled bool) Option {
	return func(p *Proposer) {
		p.Segment = enabled
	}
}

// WithTiling 开启或关闭超大 ROI 切分
func WithTiling(enabled bool) Option {
	return func(p *Proposer) {
		p.Tile = enabled
	}
}

// WithAreaLimits 设置面积阈值
func WithAreaLimits(minArea, maxArea float32) Option {
	return func(p *Proposer) {
		p.MinArea = minArea
		p.MaxArea = maxArea
	}
}

// WithDilation 设置膨胀核、膨胀次数与外接矩形边距
func WithDilation(kernel image.Point, iterations, margin int) Option {
	return func(p *Proposer) {
		p.DilateKernel = kernel
		p.DilateIterations = iterations
		p.DilateMargin = margin
	}
}

// Propose 返回画面中的候选区域
//
// 过滤掉面积不大于 MinArea 的分割结果后，一个不剩时退化为整帧；整帧本身
// 也不大于 MinArea 时返回空列表。
func (p *Proposer) Propose(frame gocv.Mat, hint Background) []geom.Rect {
	start := time.Now()
	w, h := float32(frame.Cols()), float32(frame.Rows())

	var rects []geom.Rect
	if p.Segment {
		if hint == BackgroundAuto {
			hint = GuessBackground(frame)
			logger.Debug("自动估计背景色: %s", hint)
		}
		rects = p.filter(p.segment(frame, hint))
	}
	if len(rects) == 0 {
		rects = p.filter([]geom.Rect{geom.NewRect(0, 0, w, h)})
	}

	if p.Tile {
		var tiled []geom.Rect
		for _, r := range rects {
			tiled = append(tiled, r)
			if r.Area() > p.MaxArea {
				tiled = append(tiled, p.filter(Split(r))...)
			}
		}
		rects = tiled
	}

	logger.LogEvent("ROI", len(rects) > 0, logger.Since(start),
		fmt.Sprintf("背景=%s 候选区域 %d 个", hint, len(rects)))
	return rects
}

// filter 去掉面积不大于 MinArea 的矩形
func (p *Proposer) filter(rects []geom.Rect) []geom.Rect {
	out := rects[:0]
	for _, r := range rects {
		if r.Area() > p.MinArea {
			out = append(out, r)
		}
	}
	return out
}

// segment 按背景色分割，返回折叠后的外接矩形
func (p *Proposer) segment(frame gocv.Mat, hint Background) []geom.Rect {
	rng, ok := hint.Range()
	if !ok || frame.Empty() || frame.Channels() < 3 {
		return nil
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, rng.Lower, rng.Upper, &mask)
	// 前景 = 非背景
	gocv.BitwiseNot(mask, &mask)

	if p.DilateKernel.X > 0 && p.DilateKernel.Y > 0 {
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, p.DilateKernel)
		for i := 0; i < p.DilateIterations; i++ {
			gocv.Dilate(mask, &mask, kernel)
		}
		kernel.Close()
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	type blob struct {
		area float64
		rect image.Rectangle
	}
	blobs := make([]blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		blobs = append(blobs, blob{area: gocv.ContourArea(c), rect: gocv.BoundingRect(c)})
	}
	sort.SliceStable(blobs, func(i, j int) bool {
		return blobs[i].area > blobs[j].area
	})

	w, h := float32(frame.Cols()), float32(frame.Rows())
	expanded := make([]geom.Rect, len(blobs))
	for i, b := range blobs {
		expanded[i] = geom.FromImageRect(b.rect).Inset(float32(p.DilateMargin)).Clamp(w, h)
	}
	return Fold(expanded)
}

// Fold 折叠重叠矩形
//
// 依次处理每个矩形：已有矩形完全包含它则丢弃；已有矩形包含它的中心点则
// 把已有矩形扩展为两者并集；否则作为新矩形追加。
func Fold(rects []geom.Rect) []geom.Rect {
	var out []geom.Rect
next:
	for _, r := range rects {
		cx, cy := r.Center()
		for i := range out {
			if out[i].Contains(r) {
				continue next
			}
			if out[i].ContainsPoint(cx, cy) {
				out[i] = out[i].Union(r)
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// Split 把矩形切成左右两半、上下两半和 2x2 四宫格
func Split(r geom.Rect) []geom.Rect {
	cx, cy := r.Center()
	return []geom.Rect{
		geom.NewRect(r.Left, r.Top, cx, r.Bottom),
		geom.NewRect(cx, r.Top, r.Right, r.Bottom),
		geom.NewRect(r.Left, r.Top, r.Right, cy),
		geom.NewRect(r.Left, cy, r.Right, r.Bottom),
		geom.NewRect(r.Left, r.Top, cx, cy),
		geom.NewRect(cx, r.Top, r.Right, cy),
		geom.NewRect(r.Left, cy, cx, r.Bottom),
		geom.NewRect(cx, cy, r.Right, r.Bottom),
	}
}
