package artifact

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/zoeyai/packeye/pkg/vision/cv"
	"github.com/zoeyai/packeye/pkg/vision/geom"
)

// Box 待标注的矩形
type Box struct {
	Rect  geom.Rect
	Text  string
	Color color.RGBA
}

const labelFontSize = 14

var (
	fontOnce sync.Once
	fontFace *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontFace, fontErr = freetype.ParseFont(goregular.TTF)
	})
	return fontFace, fontErr
}

// Annotate 返回画好矩形与文字的副本，调用方负责 Close
func Annotate(img gocv.Mat, boxes []Box) (gocv.Mat, error) {
	out := img.Clone()
	for _, b := range boxes {
		gocv.Rectangle(&out, b.Rect.ImageRect(), b.Color, 2)
	}

	if !hasText(boxes) {
		return out, nil
	}

	f, err := loadFont()
	if err != nil {
		out.Close()
		return gocv.Mat{}, fmt.Errorf("加载字体失败: %w", err)
	}

	src, err := cv.MatToImage(out)
	out.Close()
	if err != nil {
		return gocv.Mat{}, err
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f)
	ctx.SetFontSize(labelFontSize)
	ctx.SetClip(rgba.Bounds())
	ctx.SetDst(rgba)
	ctx.SetHinting(font.HintingFull)

	for _, b := range boxes {
		if b.Text == "" {
			continue
		}
		ctx.SetSrc(image.NewUniform(color.RGBA{R: b.Color.R, G: b.Color.G, B: b.Color.B, A: 255}))
		r := b.Rect.ImageRect()
		// 文字基线放在矩形上边框之上，贴边时放进框内
		y := r.Min.Y - 4
		if y < labelFontSize {
			y = r.Min.Y + labelFontSize + 2
		}
		if _, err := ctx.DrawString(b.Text, freetype.Pt(r.Min.X+2, y)); err != nil {
			return gocv.Mat{}, fmt.Errorf("绘制文字失败: %w", err)
		}
	}

	return cv.ImageToMat(rgba)
}

func hasText(boxes []Box) bool {
	for _, b := range boxes {
		if b.Text != "" {
			return true
		}
	}
	return false
}
