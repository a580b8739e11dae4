package cv

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
)

func TestCropRectClampsToBounds(t *testing.T) {
	img := gocv.NewMatWithSize(100, 200, gocv.MatTypeCV8UC3)
	defer img.Close()

	crop := CropRect(img, geom.NewRect(150, 50, 260, 140))
	defer crop.Close()

	if crop.Cols() != 50 || crop.Rows() != 50 {
		t.Errorf("裁剪尺寸错误: got %dx%d, want 50x50", crop.Cols(), crop.Rows())
	}

	empty := CropRect(img, geom.NewRect(300, 300, 400, 400))
	defer empty.Close()
	if !empty.Empty() {
		t.Error("完全在图像外的裁剪应返回空 Mat")
	}
}

func TestToGray(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	gray := ToGray(img)
	defer gray.Close()
	if gray.Channels() != 1 {
		t.Errorf("灰度图通道数错误: got %d", gray.Channels())
	}

	again := ToGray(gray)
	defer again.Close()
	if again.Channels() != 1 {
		t.Errorf("灰度图再次转换后通道数错误: got %d", again.Channels())
	}
}

func TestImageToMatChannelOrder(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	mat, err := ImageToMat(src)
	if err != nil {
		t.Fatalf("ImageToMat 失败: %v", err)
	}
	defer mat.Close()

	px := mat.GetVecbAt(0, 0)
	if px[0] != 0 || px[2] != 255 {
		t.Errorf("应为 BGR 顺序, got %v", px)
	}
}

func TestWriteAndReadImage(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 16, 24, gocv.MatTypeCV8UC3)
	defer img.Close()

	path := filepath.Join(t.TempDir(), "nested", "out.png")
	if err := WriteImage(path, img); err != nil {
		t.Fatalf("WriteImage 失败: %v", err)
	}

	back, err := ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage 失败: %v", err)
	}
	defer back.Close()
	if back.Cols() != 24 || back.Rows() != 16 {
		t.Errorf("读回尺寸错误: got %dx%d", back.Cols(), back.Rows())
	}

	oriented, err := OpenImage(path)
	if err != nil {
		t.Fatalf("OpenImage 失败: %v", err)
	}
	defer oriented.Close()
	px := oriented.GetVecbAt(0, 0)
	if px[0] != 10 || px[1] != 20 || px[2] != 30 {
		t.Errorf("OpenImage 像素错误: got %v", px)
	}
}

func TestReadImageMissing(t *testing.T) {
	if _, err := ReadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("读取不存在的文件应返回错误")
	}
}

func TestOpenImageFallsBackToIMRead(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 50, 60, 0), 12, 18, gocv.MatTypeCV8UC3)
	defer img.Close()

	// PPM 只有 OpenCV 能解码
	path := filepath.Join(t.TempDir(), "frame.ppm")
	if err := WriteImage(path, img); err != nil {
		t.Fatalf("WriteImage 失败: %v", err)
	}

	back, err := OpenImage(path)
	if err != nil {
		t.Fatalf("OpenImage 失败: %v", err)
	}
	defer back.Close()
	if back.Cols() != 18 || back.Rows() != 12 {
		t.Errorf("读回尺寸错误: got %dx%d", back.Cols(), back.Rows())
	}
	if px := back.GetVecbAt(0, 0); px[0] != 40 || px[1] != 50 || px[2] != 60 {
		t.Errorf("像素错误: got %v", px)
	}

	if _, err := OpenImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("打开不存在的文件应返回错误")
	}
}
