package artifact

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
)

func TestDirSinkSave(t *testing.T) {
	root := t.TempDir()
	sink := NewDirSink(root)

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 20, 30, gocv.MatTypeCV8UC3)
	defer img.Close()

	if err := sink.Save(img, "rois", "roi_0"); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "rois", "roi_0.png")); err != nil {
		t.Errorf("文件应存在: %v", err)
	}

	// 路径分隔符被替换，不会写出 Root 之外
	if err := sink.Save(img, "../escape", "a/b"); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "__escape", "a_b.png")); err != nil {
		t.Errorf("清理后的文件应存在: %v", err)
	}
}

func TestDirSinkRequiresRoot(t *testing.T) {
	img := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer img.Close()
	if err := (&DirSink{}).Save(img, "x", "y"); err == nil {
		t.Error("未设置 Root 应返回错误")
	}
}

func TestNopSink(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()
	if err := (Nop{}).Save(img, "x", "y"); err != nil {
		t.Errorf("Nop 不应返回错误: %v", err)
	}
}

func TestAnnotate(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()

	boxes := []Box{
		{Rect: geom.NewRect(20, 30, 100, 90), Text: "productA 0.92", Color: color.RGBA{G: 255, A: 255}},
		{Rect: geom.NewRect(0, 0, 40, 40), Color: color.RGBA{R: 255, A: 255}},
	}
	out, err := Annotate(img, boxes)
	if err != nil {
		t.Fatalf("Annotate 失败: %v", err)
	}
	defer out.Close()

	if out.Cols() != 160 || out.Rows() != 120 {
		t.Errorf("标注后尺寸应不变: got %dx%d", out.Cols(), out.Rows())
	}
	// 绿色边框 (BGR)
	px := out.GetVecbAt(30, 60)
	if px[1] != 255 {
		t.Errorf("边框像素应为绿色, got %v", px)
	}
	// 原图不受影响
	if v := img.GetVecbAt(30, 60); v[1] != 0 {
		t.Errorf("原图不应被修改, got %v", v)
	}
}
