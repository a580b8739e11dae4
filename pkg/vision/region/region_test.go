package region

import (
	"image"
	"image/color"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
)

// solidFrame 创建纯色 BGR 画面
func solidFrame(w, h int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), h, w, gocv.MatTypeCV8UC3)
}

func TestProposeFallbackFullFrame(t *testing.T) {
	frame := solidFrame(1000, 1000, 40, 40, 200) // 红褐色，不含绿色
	defer frame.Close()

	for _, segment := range []bool{false, true} {
		p := NewProposer(WithSegmentation(segment))
		rois := p.Propose(frame, BackgroundGreen)
		if len(rois) != 1 {
			t.Fatalf("segment=%v: 应只有一个整帧 ROI, got %d: %v", segment, len(rois), rois)
		}
		want := geom.NewRect(0, 0, 1000, 1000)
		if rois[0] != want {
			t.Errorf("segment=%v: 整帧 ROI 错误: got %v want %v", segment, rois[0], want)
		}
		if rois[0].Area() != 1000000 {
			t.Errorf("整帧面积错误: got %.0f", rois[0].Area())
		}
	}
}

func TestProposeSegmentsObjectsOnGreen(t *testing.T) {
	frame := solidFrame(800, 600, 0, 200, 0)
	defer frame.Close()

	// 两个远离的白色物体
	gocv.Rectangle(&frame, image.Rect(50, 60, 250, 260), color.RGBA{255, 255, 255, 0}, -1)
	gocv.Rectangle(&frame, image.Rect(500, 300, 700, 550), color.RGBA{255, 255, 255, 0}, -1)

	p := NewProposer(WithSegmentation(true), WithDilation(DefaultDilateKernel, DefaultDilateIterations, 10))
	rois := p.Propose(frame, BackgroundGreen)
	if len(rois) != 2 {
		t.Fatalf("应分割出 2 个 ROI, got %d: %v", len(rois), rois)
	}

	// 按面积降序：第二个物体更大
	big := geom.NewRect(500, 300, 700, 550)
	small := geom.NewRect(50, 60, 250, 260)
	if !rois[0].Contains(big) {
		t.Errorf("第一个 ROI 应包含较大物体: got %v", rois[0])
	}
	if !rois[1].Contains(small) {
		t.Errorf("第二个 ROI 应包含较小物体: got %v", rois[1])
	}
	full := geom.NewRect(0, 0, 800, 600)
	for _, r := range rois {
		if !full.Contains(r) {
			t.Errorf("ROI 超出画面: %v", r)
		}
	}
}

func TestProposeSmallBlobsFallBackToFullFrame(t *testing.T) {
	frame := solidFrame(1000, 1000, 0, 200, 0)
	defer frame.Close()
	// 3x3 的红色杂点
	gocv.Rectangle(&frame, image.Rect(500, 500, 503, 503), color.RGBA{255, 0, 0, 0}, -1)

	// 边距很小时杂点的区域不超过最小面积，全部被过滤后应退化为整帧
	p := NewProposer(WithSegmentation(true), WithDilation(image.Pt(3, 3), 1, 0))
	rois := p.Propose(frame, BackgroundGreen)
	if len(rois) != 1 || rois[0] != geom.NewRect(0, 0, 1000, 1000) {
		t.Fatalf("应退化为整帧 ROI, got %v", rois)
	}

	// 默认边距下杂点区域足够大，ROI 应包含杂点
	rois = NewProposer(WithSegmentation(true)).Propose(frame, BackgroundGreen)
	if len(rois) == 0 {
		t.Fatal("开启分割时 ROI 列表不应为空")
	}
	if !rois[0].Contains(geom.NewRect(500, 500, 503, 503)) {
		t.Errorf("ROI 应包含杂点: %v", rois[0])
	}
	for _, r := range rois {
		if r.Area() <= DefaultMinArea {
			t.Errorf("ROI 面积不应小于等于最小值: %v", r)
		}
	}
}

func TestProposeFiltersSmallAreas(t *testing.T) {
	frame := solidFrame(40, 40, 0, 0, 0) // 面积 1600 < 2048
	defer frame.Close()

	p := NewProposer()
	rois := p.Propose(frame, BackgroundNone)
	if len(rois) != 0 {
		t.Errorf("面积不足的整帧应被过滤, got %v", rois)
	}

	p = NewProposer(WithAreaLimits(100, 10000))
	rois = p.Propose(frame, BackgroundNone)
	if len(rois) != 1 {
		t.Errorf("降低阈值后应保留整帧, got %v", rois)
	}
}

func TestProposeTiling(t *testing.T) {
	frame := solidFrame(200, 100, 0, 0, 0)
	defer frame.Close()

	p := NewProposer(WithTiling(true), WithAreaLimits(1000, 10000))
	rois := p.Propose(frame, BackgroundNone)

	// 原始 + 2 个左右半幅 + 2 个上下半幅 + 4 个四宫格
	if len(rois) != 9 {
		t.Fatalf("切分后应有 9 个 ROI, got %d", len(rois))
	}
	if rois[0] != geom.NewRect(0, 0, 200, 100) {
		t.Errorf("原始 ROI 应排在最前: %v", rois[0])
	}
	for _, r := range rois {
		if r.Area() <= 1000 {
			t.Errorf("ROI 面积不应小于等于最小值: %v", r)
		}
	}

	// 四宫格面积 5000 <= 6000 时被过滤
	p = NewProposer(WithTiling(true), WithAreaLimits(6000, 10000))
	rois = p.Propose(frame, BackgroundNone)
	if len(rois) != 5 {
		t.Errorf("过滤四宫格后应有 5 个 ROI, got %d", len(rois))
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   []geom.Rect
		want []geom.Rect
	}{
		{
			name: "contained is dropped",
			in:   []geom.Rect{geom.NewRect(0, 0, 100, 100), geom.NewRect(10, 10, 20, 20)},
			want: []geom.Rect{geom.NewRect(0, 0, 100, 100)},
		},
		{
			name: "center inside grows existing",
			in:   []geom.Rect{geom.NewRect(0, 0, 100, 100), geom.NewRect(80, 80, 120, 110)},
			want: []geom.Rect{geom.NewRect(0, 0, 120, 110)},
		},
		{
			name: "overlap without center stays separate",
			in:   []geom.Rect{geom.NewRect(0, 0, 100, 100), geom.NewRect(90, 90, 200, 200)},
			want: []geom.Rect{geom.NewRect(0, 0, 100, 100), geom.NewRect(90, 90, 200, 200)},
		},
		{
			name: "disjoint appended",
			in:   []geom.Rect{geom.NewRect(0, 0, 10, 10), geom.NewRect(50, 50, 60, 60)},
			want: []geom.Rect{geom.NewRect(0, 0, 10, 10), geom.NewRect(50, 50, 60, 60)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fold(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("数量错误: got %v want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] got %v want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitCoversRect(t *testing.T) {
	r := geom.NewRect(10, 20, 110, 220)
	parts := Split(r)
	if len(parts) != 8 {
		t.Fatalf("应切分为 8 块, got %d", len(parts))
	}
	var quadArea float32
	for _, q := range parts[4:] {
		quadArea += q.Area()
	}
	if quadArea != r.Area() {
		t.Errorf("四宫格面积之和应等于原面积: %.0f vs %.0f", quadArea, r.Area())
	}
	for _, part := range parts {
		if !r.Contains(part) {
			t.Errorf("切块应在原矩形内: %v", part)
		}
	}
}

func TestParseBackground(t *testing.T) {
	b, err := ParseBackground("GREEN")
	if err != nil || b != BackgroundGreen {
		t.Errorf("ParseBackground(GREEN) = %v, %v", b, err)
	}
	b, err = ParseBackground("")
	if err != nil || b != BackgroundNone {
		t.Errorf("空字符串应返回 none: %v, %v", b, err)
	}
	if _, err := ParseBackground("purple"); err == nil {
		t.Error("未知背景色应返回错误")
	}
	if BackgroundBlue.String() != "blue" {
		t.Errorf("String 错误: %s", BackgroundBlue)
	}
	if _, ok := BackgroundNone.Range(); ok {
		t.Error("none 不应有 HSV 范围")
	}
	if b, err := ParseBackground("Gray"); err != nil || b != BackgroundGray {
		t.Errorf("ParseBackground(Gray) = %v, %v", b, err)
	}
}

func TestBackgroundRanges(t *testing.T) {
	tests := []struct {
		bg           Background
		lower, upper [3]float64
	}{
		{BackgroundGreen, [3]float64{35, 43, 46}, [3]float64{99, 255, 255}},
		{BackgroundBlue, [3]float64{100, 43, 46}, [3]float64{124, 255, 255}},
		{BackgroundRed, [3]float64{0, 43, 46}, [3]float64{10, 255, 255}},
		{BackgroundWhite, [3]float64{0, 0, 46}, [3]float64{180, 43, 255}},
		{BackgroundBlack, [3]float64{0, 0, 0}, [3]float64{180, 255, 220}},
		// 灰色沿用绿色的范围
		{BackgroundGray, [3]float64{35, 43, 46}, [3]float64{99, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.bg.String(), func(t *testing.T) {
			rng, ok := tt.bg.Range()
			if !ok {
				t.Fatal("应有 HSV 范围")
			}
			lo := [3]float64{rng.Lower.Val1, rng.Lower.Val2, rng.Lower.Val3}
			hi := [3]float64{rng.Upper.Val1, rng.Upper.Val2, rng.Upper.Val3}
			if lo != tt.lower || hi != tt.upper {
				t.Errorf("范围错误: got %v-%v want %v-%v", lo, hi, tt.lower, tt.upper)
			}
		})
	}
	if _, ok := BackgroundAuto.Range(); ok {
		t.Error("auto 不应有 HSV 范围")
	}
}

func TestGuessBackground(t *testing.T) {
	green := colorful.Hsv(120, 0.8, 0.6)
	r, g, b := green.RGB255()
	frame := solidFrame(320, 240, float64(b), float64(g), float64(r))
	defer frame.Close()
	// 中心物体不影响边缘采样
	gocv.Rectangle(&frame, image.Rect(100, 80, 220, 160), color.RGBA{255, 255, 255, 0}, -1)

	if got := GuessBackground(frame); got != BackgroundGreen {
		t.Errorf("应估计为绿色背景, got %s", got)
	}

	white := solidFrame(100, 100, 245, 245, 245)
	defer white.Close()
	if got := GuessBackground(white); got != BackgroundWhite {
		t.Errorf("应估计为白色背景, got %s", got)
	}

	gray := solidFrame(100, 100, 128, 128, 128)
	defer gray.Close()
	if got := GuessBackground(gray); got != BackgroundNone {
		t.Errorf("中灰背景不应匹配任何背景色, got %s", got)
	}
}

func TestProposeAutoBackground(t *testing.T) {
	r, g, b := colorful.Hsv(120, 0.8, 0.6).RGB255()
	frame := solidFrame(400, 400, float64(b), float64(g), float64(r))
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(100, 100, 300, 300), color.RGBA{255, 255, 255, 0}, -1)

	p := NewProposer(WithSegmentation(true), WithDilation(DefaultDilateKernel, DefaultDilateIterations, 10))
	rois := p.Propose(frame, BackgroundAuto)
	if len(rois) != 1 {
		t.Fatalf("应得到一个 ROI, got %v", rois)
	}
	if rois[0] == geom.NewRect(0, 0, 400, 400) {
		t.Errorf("自动背景应分割出物体而不是整帧: %v", rois[0])
	}
}
