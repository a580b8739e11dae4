// Package feature 用局部特征点把查询图像与参考图库比对，确认商品身份
package feature

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/cv"
)

// ErrCollaborator 特征提取或匹配组件调用失败
var ErrCollaborator = cv.ErrCollaborator

// Extractor 特征点检测与描述子计算
//
// 返回的描述子矩阵行与特征点一一对应，调用方负责 Close。
type Extractor interface {
	Extract(img gocv.Mat) ([]gocv.KeyPoint, gocv.Mat, error)
}

// ORBExtractor 基于 ORB 的二进制描述子提取器，内部加锁，可并发使用
type ORBExtractor struct {
	mu  sync.Mutex
	orb gocv.ORB
}

// NewORBExtractor 创建 ORB 提取器
func NewORBExtractor() *ORBExtractor {
	return &ORBExtractor{orb: gocv.NewORB()}
}

// Extract 在灰度图上检测并计算描述子
func (e *ORBExtractor) Extract(img gocv.Mat) ([]gocv.KeyPoint, gocv.Mat, error) {
	if img.Empty() {
		return nil, gocv.NewMat(), fmt.Errorf("%w: 图像为空", ErrCollaborator)
	}
	gray := cv.ToGray(img)
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	kps, desc := e.orb.DetectAndCompute(gray, mask)
	return kps, desc, nil
}

// Close 释放资源
func (e *ORBExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orb.Close()
}
