package recognize

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/geom"
)

// NetClassifier 基于 OpenCV DNN 的 SSD 检测模型
//
// 输入为 Recognizer 变换后的定尺寸图像；输出为 [1,1,N,7] 的检测张量，
// 每行 [batch, classID, score, left, top, right, bottom]，坐标为 0-1 归一化值。
type NetClassifier struct {
	mu     sync.Mutex
	net    gocv.Net
	labels []string
	// Scale/Mean 输入归一化参数，MobileNet-SSD 默认 1/127.5 与 127.5
	Scale float64
	Mean  gocv.Scalar
	// SwapRB 模型是否需要 RGB 输入
	SwapRB bool
}

// NewNetClassifier 加载模型，config 可为空（onnx/tflite 等单文件模型）
func NewNetClassifier(model, config, labelsPath string) (*NetClassifier, error) {
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("模型文件不存在: %w", err)
	}
	net := gocv.ReadNet(model, config)
	if net.Empty() {
		return nil, fmt.Errorf("加载模型失败: %s", model)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("设置推理后端失败: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("设置推理设备失败: %w", err)
	}

	var labels []string
	if labelsPath != "" {
		var err error
		if labels, err = readLabels(labelsPath); err != nil {
			net.Close()
			return nil, err
		}
	}

	return &NetClassifier{
		net:    net,
		labels: labels,
		Scale:  1.0 / 127.5,
		Mean:   gocv.NewScalar(127.5, 127.5, 127.5, 0),
		SwapRB: true,
	}, nil
}

// Recognize 实现 Classifier，坐标换算到输入图像像素空间
func (c *NetClassifier) Recognize(img gocv.Mat) ([]Detection, error) {
	w, h := img.Cols(), img.Rows()
	blob := gocv.BlobFromImage(img, c.Scale, image.Pt(w, h), c.Mean, c.SwapRB, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	c.mu.Unlock()
	defer output.Close()

	if output.Total()%7 != 0 {
		return nil, fmt.Errorf("模型输出格式不支持: total=%d", output.Total())
	}
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	var dets []Detection
	for i := 0; i < rows.Rows(); i++ {
		score := rows.GetFloatAt(i, 2)
		if score <= 0 {
			continue
		}
		classID := int(rows.GetFloatAt(i, 1))
		dets = append(dets, Detection{
			ID:         strconv.Itoa(i),
			Label:      c.label(classID),
			Confidence: score,
			Location: geom.NewRect(
				rows.GetFloatAt(i, 3)*float32(w),
				rows.GetFloatAt(i, 4)*float32(h),
				rows.GetFloatAt(i, 5)*float32(w),
				rows.GetFloatAt(i, 6)*float32(h),
			),
		})
	}
	return dets, nil
}

// Close 释放模型
func (c *NetClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

func (c *NetClassifier) label(classID int) string {
	if classID >= 0 && classID < len(c.labels) {
		return c.labels[classID]
	}
	return strconv.Itoa(classID)
}

// readLabels 每行一个标签，行号即类别 ID
func readLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取标签文件失败: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取标签文件失败: %w", err)
	}
	return labels, nil
}
