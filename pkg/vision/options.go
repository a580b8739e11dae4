package vision

import (
	"github.com/zoeyai/packeye/pkg/vision/artifact"
	"github.com/zoeyai/packeye/pkg/vision/feature"
)

// Option Pipeline 配置选项
type Option func(*Pipeline)

// WithIndex 设置参考库，Identify 需要
func WithIndex(idx *feature.CandidateIndex) Option {
	return func(p *Pipeline) {
		p.index = idx
	}
}

// WithExtractor 设置特征提取器，默认 ORB
func WithExtractor(e feature.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithMatcher 设置描述子匹配器，默认汉明距离暴力匹配
func WithMatcher(m feature.Matcher) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.matcher = m
		}
	}
}

// WithArtifactSink 保存标注后的整帧图像
func WithArtifactSink(s artifact.Sink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}
