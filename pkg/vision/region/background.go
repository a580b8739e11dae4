// Package region 按背景色分割画面并给出候选识别区域 (ROI)
package region

import (
	"fmt"
	"math"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// Background 背景色提示
type Background int

const (
	// BackgroundNone 不做颜色分割
	BackgroundNone Background = iota
	// BackgroundAuto 从画面边缘估计背景色
	BackgroundAuto
	BackgroundGreen
	BackgroundBlue
	BackgroundRed
	BackgroundWhite
	BackgroundBlack
	// BackgroundGray 灰色背景，没有单独标定，沿用绿色的范围
	BackgroundGray
)

var backgroundNames = map[Background]string{
	BackgroundNone:  "none",
	BackgroundAuto:  "auto",
	BackgroundGreen: "green",
	BackgroundBlue:  "blue",
	BackgroundRed:   "red",
	BackgroundWhite: "white",
	BackgroundBlack: "black",
	BackgroundGray:  "gray",
}

func (b Background) String() string {
	if name, ok := backgroundNames[b]; ok {
		return name
	}
	return fmt.Sprintf("background(%d)", int(b))
}

// ParseBackground 解析背景色名称（不区分大小写）
func ParseBackground(s string) (Background, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BackgroundNone, nil
	}
	for b, name := range backgroundNames {
		if name == s {
			return b, nil
		}
	}
	return BackgroundNone, fmt.Errorf("未知的背景色: %s", s)
}

// HSVRange OpenCV 尺度下的 HSV 范围：H 0-180，S/V 0-255
type HSVRange struct {
	Lower gocv.Scalar
	Upper gocv.Scalar
}

// 标定值，尚未经过现场验证
var hsvRanges = map[Background]HSVRange{
	BackgroundGreen: {Lower: gocv.NewScalar(35, 43, 46, 0), Upper: gocv.NewScalar(99, 255, 255, 0)},
	BackgroundBlue:  {Lower: gocv.NewScalar(100, 43, 46, 0), Upper: gocv.NewScalar(124, 255, 255, 0)},
	BackgroundRed:   {Lower: gocv.NewScalar(0, 43, 46, 0), Upper: gocv.NewScalar(10, 255, 255, 0)},
	BackgroundWhite: {Lower: gocv.NewScalar(0, 0, 46, 0), Upper: gocv.NewScalar(180, 43, 255, 0)},
	BackgroundBlack: {Lower: gocv.NewScalar(0, 0, 0, 0), Upper: gocv.NewScalar(180, 255, 220, 0)},
}

// Range 返回背景色对应的 HSV 范围
func (b Background) Range() (HSVRange, bool) {
	if b == BackgroundGray {
		b = BackgroundGreen
	}
	r, ok := hsvRanges[b]
	return r, ok
}

// 各背景色的代表色，用于自动估计
var referenceColors = map[Background]colorful.Color{
	BackgroundGreen: colorful.Hsv(120, 0.8, 0.6),
	BackgroundBlue:  colorful.Hsv(220, 0.8, 0.6),
	BackgroundRed:   colorful.Hsv(0, 0.8, 0.7),
	BackgroundWhite: colorful.Color{R: 0.95, G: 0.95, B: 0.95},
	BackgroundBlack: colorful.Color{R: 0.05, G: 0.05, B: 0.05},
}

const (
	borderBand        = 4
	borderStep        = 2
	maxGuessDistance  = 0.35
	guessSampleTarget = 2048
)

// GuessBackground 取画面四周边缘像素的中位色，返回 Lab 距离最近的背景色
// 距离超过阈值或画面为空时返回 BackgroundNone。灰色没有独立的范围，不参与估计
func GuessBackground(frame gocv.Mat) Background {
	if frame.Empty() || frame.Channels() < 3 {
		return BackgroundNone
	}

	samples := sampleBorder(frame)
	if len(samples) == 0 {
		return BackgroundNone
	}
	c := medianColor(samples)

	best, bestDist := BackgroundNone, math.MaxFloat64
	// 固定顺序遍历，保证结果确定
	for _, b := range []Background{BackgroundGreen, BackgroundBlue, BackgroundRed, BackgroundWhite, BackgroundBlack} {
		d := c.DistanceLab(referenceColors[b])
		if d < bestDist {
			best, bestDist = b, d
		}
	}
	if bestDist > maxGuessDistance {
		return BackgroundNone
	}
	return best
}

func sampleBorder(frame gocv.Mat) [][3]uint8 {
	w, h := frame.Cols(), frame.Rows()
	band := min(borderBand, w/2, h/2)
	if band <= 0 {
		return nil
	}

	perimeter := 2 * (w + h) * band
	step := max(borderStep, perimeter/guessSampleTarget)

	var out [][3]uint8
	add := func(x, y int) {
		v := frame.GetVecbAt(y, x)
		out = append(out, [3]uint8{v[0], v[1], v[2]})
	}
	for d := 0; d < band; d++ {
		for x := 0; x < w; x += step {
			add(x, d)
			add(x, h-1-d)
		}
		for y := band; y < h-band; y += step {
			add(d, y)
			add(w-1-d, y)
		}
	}
	return out
}

func medianColor(samples [][3]uint8) colorful.Color {
	ch := make([]int, len(samples))
	median := func(i int) float64 {
		for k, s := range samples {
			ch[k] = int(s[i])
		}
		sort.Ints(ch)
		return float64(ch[len(ch)/2]) / 255
	}
	// 像素为 BGR 顺序
	b, g, r := median(0), median(1), median(2)
	return colorful.Color{R: r, G: g, B: b}
}
