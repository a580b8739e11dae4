// Package geom 提供浮点矩形与仿射坐标变换
package geom

import (
	"fmt"
	"image"
	"math"
)

// Rect 轴对齐矩形（浮点坐标）
type Rect struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

// NewRect 创建矩形，自动保证 Right >= Left, Bottom >= Top
func NewRect(left, top, right, bottom float32) Rect {
	if right < left {
		left, right = right, left
	}
	if bottom < top {
		top, bottom = bottom, top
	}
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// FromImageRect 从 image.Rectangle 创建
func FromImageRect(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Right:  float32(r.Max.X),
		Bottom: float32(r.Max.Y),
	}
}

// Width 宽度
func (r Rect) Width() float32 { return r.Right - r.Left }

// Height 高度
func (r Rect) Height() float32 { return r.Bottom - r.Top }

// Area 面积
func (r Rect) Area() float32 { return r.Width() * r.Height() }

// Center 中心点
func (r Rect) Center() (float32, float32) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Contains 是否完全包含 o（边界重合也算包含）
func (r Rect) Contains(o Rect) bool {
	return r.Left <= o.Left && r.Top <= o.Top && r.Right >= o.Right && r.Bottom >= o.Bottom
}

// ContainsPoint 点是否在矩形内（含边界）
func (r Rect) ContainsPoint(x, y float32) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Intersects 两个矩形是否有重叠
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

// Union 返回包围两个矩形的最小矩形
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Offset 平移
func (r Rect) Offset(dx, dy float32) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Inset 向外扩展 d（d 为负时向内收缩）
func (r Rect) Inset(d float32) Rect {
	return NewRect(r.Left-d, r.Top-d, r.Right+d, r.Bottom+d)
}

// Clamp 裁剪到 [0, w] x [0, h]
func (r Rect) Clamp(w, h float32) Rect {
	clamp := func(v, hi float32) float32 {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	return Rect{
		Left:   clamp(r.Left, w),
		Top:    clamp(r.Top, h),
		Right:  clamp(r.Right, w),
		Bottom: clamp(r.Bottom, h),
	}
}

// ClampTo 裁剪到矩形 b 内
func (r Rect) ClampTo(b Rect) Rect {
	clamp := func(v, lo, hi float32) float32 {
		return min(max(v, lo), hi)
	}
	return Rect{
		Left:   clamp(r.Left, b.Left, b.Right),
		Top:    clamp(r.Top, b.Top, b.Bottom),
		Right:  clamp(r.Right, b.Left, b.Right),
		Bottom: clamp(r.Bottom, b.Top, b.Bottom),
	}
}

// ImageRect 四舍五入为整数像素矩形
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(
		int(math.Round(float64(r.Left))),
		int(math.Round(float64(r.Top))),
		int(math.Round(float64(r.Right))),
		int(math.Round(float64(r.Bottom))),
	)
}

// String 返回字符串表示
func (r Rect) String() string {
	return fmt.Sprintf("[%.1f,%.1f - %.1f,%.1f]", r.Left, r.Top, r.Right, r.Bottom)
}
