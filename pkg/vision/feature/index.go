package feature

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrDescriptorMismatch 特征点数量与描述子行数不一致
	ErrDescriptorMismatch = errors.New("特征点与描述子数量不一致")
	// ErrEmptyIndex 参考库为空
	ErrEmptyIndex = errors.New("参考库为空")
)

// ReferenceEntry 一张参考图的特征，构建后只读
type ReferenceEntry struct {
	Label       string
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
	// Source 原始参考图，仅供调试
	Source gocv.Mat
}

func (e *ReferenceEntry) close() {
	e.Descriptors.Close()
	e.Source.Close()
}

// CandidateIndex 标签 -> 参考特征列表，标签与条目保持插入顺序
//
// 只能由 Builder 构建，构建完成后不再修改，可被多个查询并发读取。
type CandidateIndex struct {
	labels  []string
	entries map[string][]*ReferenceEntry
}

// Labels 按插入顺序返回所有标签
func (idx *CandidateIndex) Labels() []string {
	out := make([]string, len(idx.labels))
	copy(out, idx.labels)
	return out
}

// Entries 返回某个标签的参考条目
func (idx *CandidateIndex) Entries(label string) []*ReferenceEntry {
	return idx.entries[label]
}

// Len 条目总数
func (idx *CandidateIndex) Len() int {
	n := 0
	for _, es := range idx.entries {
		n += len(es)
	}
	return n
}

// Close 释放所有条目持有的 Mat
func (idx *CandidateIndex) Close() {
	for _, label := range idx.labels {
		for _, e := range idx.entries[label] {
			e.close()
		}
	}
	idx.entries = nil
	idx.labels = nil
}

// Builder 参考库构建器
//
// Build 成功后条目归索引所有；任何失败都会释放已添加的条目，不留下半成品。
type Builder struct {
	extractor Extractor
	pending   []*ReferenceEntry
	err       error
}

// NewBuilder 创建构建器，extractor 用于 Add
func NewBuilder(extractor Extractor) *Builder {
	return &Builder{extractor: extractor}
}

// Add 提取参考图特征并追加到 label 下，img 会被克隆保留
func (b *Builder) Add(label string, img gocv.Mat) error {
	if b.err != nil {
		return b.err
	}
	if b.extractor == nil {
		return b.fail(fmt.Errorf("%w: 未配置特征提取器", ErrCollaborator))
	}
	kps, desc, err := b.extractor.Extract(img)
	if err != nil {
		desc.Close()
		return b.fail(fmt.Errorf("%w: 提取参考图特征失败 [%s]: %w", ErrCollaborator, label, err))
	}
	return b.AddEntry(label, kps, desc, img.Clone())
}

// AddEntry 追加已计算好的特征，desc 与 src 的所有权转移给构建器
func (b *Builder) AddEntry(label string, kps []gocv.KeyPoint, desc, src gocv.Mat) error {
	if b.err != nil {
		desc.Close()
		src.Close()
		return b.err
	}
	b.pending = append(b.pending, &ReferenceEntry{
		Label:       label,
		Keypoints:   kps,
		Descriptors: desc,
		Source:      src,
	})
	return nil
}

// Build 校验并冻结参考库
func (b *Builder) Build() (*CandidateIndex, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pending) == 0 {
		return nil, ErrEmptyIndex
	}
	for _, e := range b.pending {
		if len(e.Keypoints) != e.Descriptors.Rows() {
			err := fmt.Errorf("%w: [%s] %d 个特征点, %d 行描述子",
				ErrDescriptorMismatch, e.Label, len(e.Keypoints), e.Descriptors.Rows())
			return nil, b.fail(err)
		}
	}

	idx := &CandidateIndex{entries: make(map[string][]*ReferenceEntry)}
	for _, e := range b.pending {
		if _, ok := idx.entries[e.Label]; !ok {
			idx.labels = append(idx.labels, e.Label)
		}
		idx.entries[e.Label] = append(idx.entries[e.Label], e)
	}
	b.pending = nil
	b.err = errors.New("构建器已使用")
	return idx, nil
}

// Discard 放弃构建并释放已添加的条目
func (b *Builder) Discard() {
	for _, e := range b.pending {
		e.close()
	}
	b.pending = nil
}

func (b *Builder) fail(err error) error {
	b.Discard()
	b.err = err
	return err
}
