package recognize

import (
	"image"
	"sort"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/zoeyai/packeye/pkg/vision/cv"
	"github.com/zoeyai/packeye/pkg/vision/geom"
	"github.com/zoeyai/packeye/pkg/vision/ocr"
)

// TextSource 文字识别来源，*ocr.TextRecognizer 满足该接口
type TextSource interface {
	Recognize(img image.Image) ([]ocr.Result, error)
}

// TextClassifier 以包装上的文字作为标签的分类器
//
// Keywords 为空时标签即规范化后的文字；否则只保留包含某个关键字的文字，
// 标签取该关键字对应的商品名。
type TextClassifier struct {
	source   TextSource
	keywords []string
	labels   map[string]string
}

// NewTextClassifier 创建文字分类器，keywords 为 关键字 -> 商品标签
func NewTextClassifier(source TextSource, keywords map[string]string) *TextClassifier {
	c := &TextClassifier{source: source, labels: make(map[string]string, len(keywords))}
	for k, label := range keywords {
		k = normalizeText(k)
		if k == "" {
			continue
		}
		c.keywords = append(c.keywords, k)
		c.labels[k] = label
	}
	// 长关键字优先，其次字典序，保证结果确定
	sort.Slice(c.keywords, func(i, j int) bool {
		if len(c.keywords[i]) != len(c.keywords[j]) {
			return len(c.keywords[i]) > len(c.keywords[j])
		}
		return c.keywords[i] < c.keywords[j]
	})
	return c
}

// Recognize 实现 Classifier
func (c *TextClassifier) Recognize(img gocv.Mat) ([]Detection, error) {
	src, err := cv.MatToImage(img)
	if err != nil {
		return nil, err
	}
	results, err := c.source.Recognize(src)
	if err != nil {
		return nil, err
	}

	dets := make([]Detection, 0, len(results))
	for i, r := range results {
		label, ok := c.label(r.Text)
		if !ok {
			continue
		}
		dets = append(dets, Detection{
			ID:         strconv.Itoa(i),
			Label:      label,
			Confidence: float32(r.Confidence),
			Location:   geom.NewRect(float32(r.Box[0]), float32(r.Box[1]), float32(r.Box[2]), float32(r.Box[3])),
		})
	}
	return dets, nil
}

func (c *TextClassifier) label(text string) (string, bool) {
	text = normalizeText(text)
	if text == "" {
		return "", false
	}
	if len(c.keywords) == 0 {
		return text, true
	}
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return c.labels[k], true
		}
	}
	return "", false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
