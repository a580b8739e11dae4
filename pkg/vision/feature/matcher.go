package feature

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// DefaultRatio 比率测试阈值
	DefaultRatio = 0.75
	// DefaultMinGoodMatches 好匹配数必须严格大于该值才算命中
	DefaultMinGoodMatches = 5
)

// Matcher k 近邻描述子匹配
//
// 返回值按 source 的行组织，每行为按距离升序排列的最多 k 个近邻。
type Matcher interface {
	KnnMatch(source, query gocv.Mat, k int) ([][]gocv.DMatch, error)
}

// BFMatcher 暴力匹配器，二进制描述子使用汉明距离
type BFMatcher struct {
	mu      sync.Mutex
	matcher gocv.BFMatcher
}

// NewBFMatcher 创建汉明距离暴力匹配器
func NewBFMatcher() *BFMatcher {
	return &BFMatcher{matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, false)}
}

// KnnMatch 对 source 的每一行查找 query 中最近的 k 个描述子
func (m *BFMatcher) KnnMatch(source, query gocv.Mat, k int) ([][]gocv.DMatch, error) {
	if source.Empty() || query.Empty() {
		return nil, nil
	}
	if source.Cols() != query.Cols() || source.Type() != query.Type() {
		return nil, fmt.Errorf("%w: 描述子格式不一致 (%d/%v vs %d/%v)",
			ErrCollaborator, source.Cols(), source.Type(), query.Cols(), query.Type())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.KnnMatch(source, query, k), nil
}

// Close 释放资源
func (m *BFMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.Close()
}

// CountGoodMatches 比率测试：最近邻距离小于 ratio 倍次近邻距离的才算好匹配
// 近邻不足两个的行直接跳过
func CountGoodMatches(matches [][]gocv.DMatch, ratio float64) int {
	good := 0
	for _, m := range matches {
		if len(m) >= 2 && float64(m[0].Distance) < ratio*float64(m[1].Distance) {
			good++
		}
	}
	return good
}
