// Package recognize 在整帧或候选区域上运行分类器，并合并重复检测结果
package recognize

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/cv"
	"github.com/zoeyai/packeye/pkg/vision/geom"
)

const (
	// MarkerID 合成的 ROI 边界标记
	MarkerID = "r"
	// MarkerLabel ROI 边界标记的标签
	MarkerLabel = "roi"
)

// ErrCollaborator 分类器等外部组件调用失败
var ErrCollaborator = cv.ErrCollaborator

// Detection 一条检测结果
type Detection struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Location   geom.Rect `json:"location"`
}

// IsMarker 是否为 ROI 边界标记
func (d Detection) IsMarker() bool {
	return d.ID == MarkerID
}

// String 返回字符串表示
func (d Detection) String() string {
	return fmt.Sprintf("%s(%s %.2f %v)", d.Label, d.ID, d.Confidence, d.Location)
}

// Marker 创建 ROI 边界标记
func Marker(roi geom.Rect) Detection {
	return Detection{ID: MarkerID, Label: MarkerLabel, Confidence: 1, Location: roi}
}

// Classifier 固定输入尺寸的目标分类器
//
// Recognize 返回的坐标位于输入图像自身的坐标系中。
// 识别器开启多个 worker 时 Recognize 会被并发调用。
type Classifier interface {
	Recognize(img gocv.Mat) ([]Detection, error)
}

// ClassifierFunc 函数适配器
type ClassifierFunc func(img gocv.Mat) ([]Detection, error)

// Recognize 调用 f(img)
func (f ClassifierFunc) Recognize(img gocv.Mat) ([]Detection, error) {
	return f(img)
}
