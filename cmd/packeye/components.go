package main

import (
	"errors"
	"image"

	"github.com/zoeyai/packeye/pkg/config"
	"github.com/zoeyai/packeye/pkg/vision"
	"github.com/zoeyai/packeye/pkg/vision/artifact"
	"github.com/zoeyai/packeye/pkg/vision/feature"
	"github.com/zoeyai/packeye/pkg/vision/ocr"
	"github.com/zoeyai/packeye/pkg/vision/recognize"
	"github.com/zoeyai/packeye/pkg/vision/region"
)

// components 一次运行用到的全部组件
type components struct {
	pipeline *vision.Pipeline
	closers  []func() error
}

func (c *components) Close() error {
	var errs []error
	// 逆序释放
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// buildComponents 按配置组装流水线，identify 只需要参考库
func buildComponents(cfg *config.PipelineConfig, identify bool) (*components, error) {
	c := &components{}

	var sink artifact.Sink = artifact.Nop{}
	if cfg.ArtifactDir != "" {
		sink = artifact.NewDirSink(cfg.ArtifactDir)
	}

	var opts []vision.Option
	opts = append(opts, vision.WithArtifactSink(sink))

	var rec *recognize.Recognizer
	if identify {
		extractor := feature.NewORBExtractor()
		c.closers = append(c.closers, extractor.Close)

		idx, err := feature.LoadDir(cfg.ReferenceDir, extractor)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() error { idx.Close(); return nil })
		opts = append(opts, vision.WithIndex(idx), vision.WithExtractor(extractor))
	} else {
		classifier, err := buildClassifier(c, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		rec = recognize.NewRecognizer(classifier,
			recognize.WithInputSize(cfg.InputWidth, cfg.InputHeight),
			recognize.WithMinConfidence(cfg.MinConfidence),
			recognize.WithRotation(cfg.Rotation),
			recognize.WithMaintainAspect(cfg.MaintainAspect),
			recognize.WithWorkers(cfg.Workers),
			recognize.WithArtifactSink(sink),
			recognize.WithProposer(region.NewProposer(
				region.WithSegmentation(cfg.Segment),
				region.WithTiling(cfg.Tile),
				region.WithAreaLimits(cfg.MinArea, cfg.MaxArea),
				region.WithDilation(image.Pt(cfg.DilateKernelWidth, cfg.DilateKernelHeight), cfg.DilateIterations, cfg.DilateMargin),
			)),
		)
	}

	p := vision.NewPipeline(rec, opts...)
	c.closers = append(c.closers, p.Close)
	c.pipeline = p
	return c, nil
}

// buildClassifier 有模型时用 DNN，否则用 OCR 文字分类
func buildClassifier(c *components, cfg *config.PipelineConfig) (recognize.Classifier, error) {
	if cfg.ModelPath != "" {
		net, err := recognize.NewNetClassifier(cfg.ModelPath, cfg.ModelConfig, cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, net.Close)
		return net, nil
	}

	ocrConfig := ocr.DefaultConfig()
	if !ocrConfig.Available() {
		return nil, errors.New("未找到 OCR 模型文件，请使用 -model 指定检测模型或将 OCR 模型放到 models 目录")
	}
	text, err := ocr.NewTextRecognizer(ocrConfig)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, text.Close)
	return recognize.NewTextClassifier(text, cfg.Keywords), nil
}
