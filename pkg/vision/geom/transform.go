package geom

import (
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

var (
	// ErrInvalidSize 源或目标尺寸不是正数
	ErrInvalidSize = errors.New("变换尺寸必须为正数")
	// ErrSingularTransform 变换矩阵不可逆
	ErrSingularTransform = errors.New("变换矩阵不可逆")
)

// Matrix 2x3 仿射矩阵
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity 单位矩阵
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// Then 返回先应用 m 再应用 n 的复合矩阵
func (m Matrix) Then(n Matrix) Matrix {
	return Matrix{
		A: n.A*m.A + n.B*m.D,
		B: n.A*m.B + n.B*m.E,
		C: n.A*m.C + n.B*m.F + n.C,
		D: n.D*m.A + n.E*m.D,
		E: n.D*m.B + n.E*m.E,
		F: n.D*m.C + n.E*m.F + n.F,
	}
}

func translate(tx, ty float64) Matrix {
	return Matrix{A: 1, C: tx, E: 1, F: ty}
}

func scale(sx, sy float64) Matrix {
	return Matrix{A: sx, E: sy}
}

// rotate 顺时针旋转（图像坐标系 y 轴向下）
func rotate(degrees float64) Matrix {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	// 90 的整数倍时消除浮点误差
	if math.Mod(degrees, 90) == 0 {
		sin, cos = math.Round(sin), math.Round(cos)
	}
	return Matrix{A: cos, B: -sin, D: sin, E: cos}
}

// BuildTransform 计算源图像到固定尺寸模型输入的仿射变换
//
// rotation 为顺时针角度（仅验证过 90 的整数倍）。
// maintainAspect 为 true 时两轴使用 max(sx, sy)，超出部分被裁掉而不是拉伸。
func BuildTransform(srcW, srcH, dstW, dstH int, rotation float64, maintainAspect bool) (Matrix, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Matrix{}, fmt.Errorf("%w: src=%dx%d dst=%dx%d", ErrInvalidSize, srcW, srcH, dstW, dstH)
	}

	m := Identity()
	if rotation != 0 {
		m = m.Then(translate(-float64(srcW)/2, -float64(srcH)/2))
		m = m.Then(rotate(rotation))
	}

	transpose := math.Mod(math.Abs(rotation)+90, 180) == 0
	inW, inH := srcW, srcH
	if transpose {
		inW, inH = srcH, srcW
	}

	if inW != dstW || inH != dstH {
		sx := float64(dstW) / float64(inW)
		sy := float64(dstH) / float64(inH)
		if maintainAspect {
			s := math.Max(sx, sy)
			m = m.Then(scale(s, s))
		} else {
			m = m.Then(scale(sx, sy))
		}
	}

	if rotation != 0 {
		m = m.Then(translate(float64(dstW)/2, float64(dstH)/2))
	}
	return m, nil
}

// Invert 求逆矩阵
func Invert(m Matrix) (Matrix, error) {
	det := m.A*m.E - m.B*m.D
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Matrix{}, ErrSingularTransform
	}
	return Matrix{
		A: m.E / det,
		B: -m.B / det,
		C: (m.B*m.F - m.C*m.E) / det,
		D: -m.D / det,
		E: m.A / det,
		F: (m.C*m.D - m.A*m.F) / det,
	}, nil
}

// MapPoint 变换一个点
func (m Matrix) MapPoint(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// MapRect 变换矩形的四个角点并返回其外接轴对齐矩形
func (m Matrix) MapRect(r Rect) Rect {
	corners := [4][2]float64{
		{float64(r.Left), float64(r.Top)},
		{float64(r.Right), float64(r.Top)},
		{float64(r.Right), float64(r.Bottom)},
		{float64(r.Left), float64(r.Bottom)},
	}

	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, c := range corners {
		x, y := m.MapPoint(c[0], c[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return Rect{Left: float32(minX), Top: float32(minY), Right: float32(maxX), Bottom: float32(maxY)}
}

// Mat 转换为 gocv 的 2x3 CV_64F 矩阵，调用方负责 Close
func (m Matrix) Mat() gocv.Mat {
	mat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	mat.SetDoubleAt(0, 0, m.A)
	mat.SetDoubleAt(0, 1, m.B)
	mat.SetDoubleAt(0, 2, m.C)
	mat.SetDoubleAt(1, 0, m.D)
	mat.SetDoubleAt(1, 1, m.E)
	mat.SetDoubleAt(1, 2, m.F)
	return mat
}

// String 返回字符串表示
func (m Matrix) String() string {
	return fmt.Sprintf("[%.4f %.4f %.4f; %.4f %.4f %.4f]", m.A, m.B, m.C, m.D, m.E, m.F)
}
