package vision

import (
	"github.com/zoeyai/packeye/pkg/vision/feature"
	"github.com/zoeyai/packeye/pkg/vision/geom"
	"github.com/zoeyai/packeye/pkg/vision/recognize"
)

// Version 版本号
const Version = "0.4.0"

// Point 表示二维坐标点
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rectangle 整数像素矩形，用于输出
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectangle 从浮点矩形取整
func NewRectangle(r geom.Rect) Rectangle {
	ir := r.ImageRect()
	return Rectangle{X: ir.Min.X, Y: ir.Min.Y, Width: ir.Dx(), Height: ir.Dy()}
}

// Center 返回矩形中心点
func (r Rectangle) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// DetectResult 一个合并后的检测结果
type DetectResult struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Rectangle  Rectangle `json:"rectangle"`
	// Result 中心点
	Result Point `json:"result"`
}

// Report 一帧的检测报告
type Report struct {
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	ROIs       []Rectangle    `json:"rois"`
	Detections []DetectResult `json:"detections"`
	// Time 耗时（毫秒）
	Time float64 `json:"time"`
}

// IdentifyResult 参考库比对结果
type IdentifyResult struct {
	Label       string `json:"label"`
	GoodMatches int    `json:"good_matches"`
}

func newDetectResult(d recognize.Detection) DetectResult {
	rect := NewRectangle(d.Location)
	return DetectResult{
		Label:      d.Label,
		Confidence: float64(d.Confidence),
		Rectangle:  rect,
		Result:     rect.Center(),
	}
}

func newIdentifyResults(matches []feature.LabelMatch) []IdentifyResult {
	out := make([]IdentifyResult, len(matches))
	for i, m := range matches {
		out[i] = IdentifyResult{Label: m.Label, GoodMatches: m.GoodMatches}
	}
	return out
}
