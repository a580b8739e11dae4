package recognize

import (
	"fmt"
	"sort"
	"time"

	"github.com/zoeyai/packeye/internal/logger"
)

// Merge 合并多个 ROI 产生的重复检测
//
// 按置信度降序（稳定）处理，跳过 ROI 标记。同标签的已选结果完全包含当前
// 结果时丢弃；同标签已选结果与当前结果重叠且包含其中心点时，把已选结果扩展
// 为两者并集后丢弃当前结果；否则接受。返回接受顺序。
// 仅重叠而中心点不在内的结果不会被合并。
func Merge(dets []Detection) []Detection {
	start := time.Now()

	sorted := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !d.IsMarker() {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	chosen := make([]Detection, 0, len(sorted))
	absorbed := 0
next:
	for _, d := range sorted {
		cx, cy := d.Location.Center()
		for i := range chosen {
			c := &chosen[i]
			if c.Label != d.Label {
				continue
			}
			if c.Location.Contains(d.Location) {
				absorbed++
				continue next
			}
			if c.Location.Intersects(d.Location) && c.Location.ContainsPoint(cx, cy) {
				c.Location = c.Location.Union(d.Location)
				absorbed++
				continue next
			}
		}
		chosen = append(chosen, d)
	}

	logger.LogEvent("MRG", true, logger.Since(start),
		fmt.Sprintf("输入 %d 条，保留 %d 条，合并 %d 条", len(dets), len(chosen), absorbed))
	return chosen
}
