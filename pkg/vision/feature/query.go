package feature

import (
	"fmt"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/internal/logger"
)

// LabelMatch 命中的标签及其好匹配数
type LabelMatch struct {
	Label       string
	GoodMatches int
}

func (m LabelMatch) String() string {
	return fmt.Sprintf("%s(%d)", m.Label, m.GoodMatches)
}

// Match 用查询图与参考库逐标签比对
//
// 查询图只提取一次特征。每个标签按插入顺序遍历条目，以参考描述子为 source 做
// 2 近邻匹配，第一个好匹配数超过 DefaultMinGoodMatches 的条目即确认该标签，
// 不再检查其余条目。未命中的标签不出现在结果中。
func (idx *CandidateIndex) Match(query gocv.Mat, extractor Extractor, matcher Matcher) ([]LabelMatch, error) {
	if idx == nil || len(idx.labels) == 0 {
		return nil, ErrEmptyIndex
	}
	start := time.Now()

	kps, desc, err := extractor.Extract(query)
	defer desc.Close()
	if err != nil {
		logger.LogEvent("FEAT", false, logger.Since(start), err.Error())
		return nil, fmt.Errorf("%w: 提取查询图特征失败: %w", ErrCollaborator, err)
	}
	if len(kps) == 0 || desc.Empty() {
		logger.LogEvent("FEAT", false, logger.Since(start), "查询图没有特征点")
		return nil, nil
	}

	var out []LabelMatch
	for _, label := range idx.labels {
		for _, e := range idx.entries[label] {
			if e.Descriptors.Empty() {
				continue
			}
			matches, err := matcher.KnnMatch(e.Descriptors, desc, 2)
			if err != nil {
				logger.LogEvent("FEAT", false, logger.Since(start), err.Error())
				return nil, fmt.Errorf("%w: 匹配参考图失败 [%s]: %w", ErrCollaborator, label, err)
			}
			if good := CountGoodMatches(matches, DefaultRatio); good > DefaultMinGoodMatches {
				out = append(out, LabelMatch{Label: label, GoodMatches: good})
				break
			}
		}
	}

	names := make([]string, len(out))
	for i, m := range out {
		names[i] = m.String()
	}
	logger.LogEvent("FEAT", len(out) > 0, logger.Since(start),
		fmt.Sprintf("kp=%d hit=[%s]", len(kps), strings.Join(names, ",")))
	return out, nil
}
