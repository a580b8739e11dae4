package cv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
)

// ReadImage 读取图像文件（BGR）
func ReadImage(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		return mat, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// OpenImage 读取图像文件并按 EXIF 方向自动旋正
// 手机拍摄的参考图通常带有方向标记，IMRead 不会处理。
// imaging 无法解码的格式 (如 webp) 交给 IMRead，此时不做方向校正。
func OpenImage(filename string) (gocv.Mat, error) {
	img, err := imaging.Open(filename, imaging.AutoOrientation(true))
	if err != nil {
		mat, rerr := ReadImage(filename)
		if rerr != nil {
			mat.Close()
			return gocv.Mat{}, fmt.Errorf("无法解码图像 %s: %w", filename, err)
		}
		return mat, nil
	}
	return ImageToMat(img)
}

// WriteImage 保存图像文件，自动创建目录
func WriteImage(filename string, img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("图像为空: %s", filename)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if ok := gocv.IMWrite(filename, img); !ok {
		return fmt.Errorf("保存图像失败: %s", filename)
	}
	return nil
}

// ToGray 转换为灰度图
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// CropRect 按浮点矩形裁剪，超出边界的部分被截掉，返回独立副本
func CropRect(img gocv.Mat, r geom.Rect) gocv.Mat {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	rect := r.ImageRect().Intersect(bounds)
	if rect.Empty() {
		return gocv.NewMat()
	}
	region := img.Region(rect)
	defer region.Close()
	return region.Clone()
}

// ImageToMat 将 image.Image 转换为 BGR gocv.Mat
func ImageToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("图像转换失败: %w", err)
	}
	defer mat.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(mat, &dst, gocv.ColorRGBToBGR)
	return dst, nil
}

// MatToImage 将 gocv.Mat 转换为 image.Image
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat 转换失败: %w", err)
	}
	return img, nil
}
