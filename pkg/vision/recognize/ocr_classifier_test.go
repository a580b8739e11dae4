package recognize

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
	"github.com/zoeyai/packeye/pkg/vision/ocr"
)

type fakeText struct {
	results []ocr.Result
	err     error
}

func (f fakeText) Recognize(image.Image) ([]ocr.Result, error) {
	return f.results, f.err
}

func TestTextClassifierRawLabels(t *testing.T) {
	img := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer img.Close()

	c := NewTextClassifier(fakeText{results: []ocr.Result{
		{Text: "  Milk   Tea ", Confidence: 0.8, Box: [4]int{1, 2, 30, 12}},
		{Text: "   ", Confidence: 0.9, Box: [4]int{0, 0, 5, 5}},
	}}, nil)

	dets, err := c.Recognize(img)
	if err != nil {
		t.Fatalf("Recognize 失败: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("空白文字应被忽略, got %v", dets)
	}
	if dets[0].Label != "milk tea" || dets[0].ID != "0" {
		t.Errorf("标签规范化错误: %v", dets[0])
	}
	if dets[0].Location != geom.NewRect(1, 2, 30, 12) {
		t.Errorf("位置错误: %v", dets[0].Location)
	}
}

func TestTextClassifierKeywords(t *testing.T) {
	img := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer img.Close()

	c := NewTextClassifier(fakeText{results: []ocr.Result{
		{Text: "Fresh MILK 1L", Confidence: 0.9},
		{Text: "bread", Confidence: 0.9},
		{Text: "oat milk", Confidence: 0.7},
	}}, map[string]string{
		"milk":     "productA",
		"oat milk": "productB",
	})

	dets, err := c.Recognize(img)
	if err != nil {
		t.Fatalf("Recognize 失败: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("不含关键字的文字应被丢弃, got %v", dets)
	}
	if dets[0].Label != "productA" {
		t.Errorf("关键字映射错误: %v", dets[0])
	}
	if dets[1].Label != "productB" || dets[1].ID != "2" {
		t.Errorf("长关键字应优先: %v", dets[1])
	}
}

func TestTextClassifierError(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	boom := errors.New("ocr down")
	_, err := NewTextClassifier(fakeText{err: boom}, nil).Recognize(img)
	if !errors.Is(err, boom) {
		t.Errorf("应返回原始错误, got %v", err)
	}
}
