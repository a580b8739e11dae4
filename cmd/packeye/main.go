package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoeyai/packeye/internal/logger"
	"github.com/zoeyai/packeye/pkg/config"
	"github.com/zoeyai/packeye/pkg/store"
	"github.com/zoeyai/packeye/pkg/vision"
	"github.com/zoeyai/packeye/pkg/vision/cv"
	"github.com/zoeyai/packeye/pkg/vision/ocr"
	"github.com/zoeyai/packeye/pkg/vision/region"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = vision.Version
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// cliFlags 命令行参数，未显式设置的参数不覆盖配置文件
type cliFlags struct {
	fs *flag.FlagSet

	configFile  *string
	background  *string
	segment     *bool
	tile        *bool
	rotation    *float64
	workers     *int
	confidence  *float64
	model       *string
	modelConfig *string
	labels      *string
	refs        *string
	out         *string
	db          *string
	logLevel    *string
	timeout     *time.Duration
	installOCR  *bool
	saveConfig  *bool
	showVersion *bool
	showHelp    *bool
}

func newFlags() *cliFlags {
	fs := flag.NewFlagSet("packeye", flag.ContinueOnError)
	return &cliFlags{
		fs:          fs,
		configFile:  fs.String("config", "", "配置文件路径 (默认 ~/.packeye/config.json)"),
		background:  fs.String("bg", "", "背景色: none/auto/green/blue/red/white/black"),
		segment:     fs.Bool("segment", false, "按背景色分割候选区域"),
		tile:        fs.Bool("tile", false, "大区域额外切块识别"),
		rotation:    fs.Float64("rotation", 0, "分类器输入旋转角度 (0/90/180/270)"),
		workers:     fs.Int("workers", 0, "并发识别的区域数"),
		confidence:  fs.Float64("confidence", 0, "最低置信度"),
		model:       fs.String("model", "", "DNN 检测模型路径，未设置时使用 OCR"),
		modelConfig: fs.String("model-config", "", "DNN 模型配置文件"),
		labels:      fs.String("labels", "", "类别标签文件，每行一个"),
		refs:        fs.String("refs", "", "参考图目录 (identify 使用)"),
		out:         fs.String("out", "", "调试图输出目录"),
		db:          fs.String("db", "", "检测记录数据库 (SQLite) 路径"),
		logLevel:    fs.String("log-level", "", "日志级别 DEBUG/INFO/WARN/ERROR"),
		timeout:     fs.Duration("timeout", 30*time.Second, "单帧处理超时"),
		installOCR:  fs.Bool("install-ocr", false, "下载 OCR 模型到 ~/.packeye/models"),
		saveConfig:  fs.Bool("save", false, "保存配置到本地"),
		showVersion: fs.Bool("version", false, "显示版本信息"),
		showHelp:    fs.Bool("help", false, "显示帮助信息"),
	}
}

// apply 命令行参数优先级高于配置文件
func (f *cliFlags) apply(cfg *config.PipelineConfig) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "bg":
			cfg.Background = *f.background
		case "segment":
			cfg.Segment = *f.segment
		case "tile":
			cfg.Tile = *f.tile
		case "rotation":
			cfg.Rotation = *f.rotation
		case "workers":
			cfg.Workers = *f.workers
		case "confidence":
			cfg.MinConfidence = float32(*f.confidence)
		case "model":
			cfg.ModelPath = *f.model
		case "model-config":
			cfg.ModelConfig = *f.modelConfig
		case "labels":
			cfg.LabelsPath = *f.labels
		case "refs":
			cfg.ReferenceDir = *f.refs
		case "out":
			cfg.ArtifactDir = *f.out
		case "db":
			cfg.DatabasePath = *f.db
		case "log-level":
			cfg.LogLevel = *f.logLevel
		}
	})
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f := newFlags()
	f.fs.Usage = printHelp
	if err := f.fs.Parse(args); err != nil {
		return 2
	}

	if *f.showVersion {
		printVersion()
		return 0
	}
	if *f.installOCR {
		return installOCR()
	}
	if *f.showHelp || f.fs.NArg() < 2 {
		printHelp()
		if *f.showHelp {
			return 0
		}
		return 2
	}
	command, imagePath := f.fs.Arg(0), f.fs.Arg(1)

	manager := config.GetDefaultManager()
	if *f.configFile != "" {
		manager = config.NewManagerWithFile(*f.configFile)
	}
	cfg, err := manager.Load()
	if err != nil {
		fmt.Printf("[WARN] 加载配置失败: %v\n", err)
	}
	// 优先级: 配置文件 < 环境变量 < 命令行参数
	env, err := config.ReadEnv(".env")
	if err != nil {
		fmt.Printf("[WARN] %v\n", err)
	}
	if err := cfg.ApplyEnv(env); err != nil {
		fmt.Printf("[WARN] 环境变量无效: %v\n", err)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("[ERROR] 配置无效: %v\n", err)
		return 1
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("[WARN] 日志文件打开失败: %v\n", err)
	}
	defer logger.Default().Close()

	if *f.saveConfig {
		if err := manager.Save(cfg); err != nil {
			fmt.Printf("[WARN] 保存配置失败: %v\n", err)
		} else {
			fmt.Printf("[INFO] 配置已保存到 %s\n", manager.GetConfigFile())
		}
	}

	frame, err := cv.OpenImage(imagePath)
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return 1
	}
	defer frame.Close()

	vision.Initialize()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *f.timeout)
	defer cancelTimeout()

	var db *store.DB
	if cfg.DatabasePath != "" {
		db, err = store.Open(cfg.DatabasePath)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return 1
		}
		defer db.Close()
	}

	var result any
	switch command {
	case "detect":
		hint, err := region.ParseBackground(cfg.Background)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return 2
		}
		c, err := buildComponents(cfg, false)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return 1
		}
		defer c.Close()
		report, err := c.pipeline.Detect(ctx, frame, hint)
		if err != nil {
			fmt.Printf("[ERROR] 检测失败: %v\n", err)
			return 1
		}
		if db != nil {
			if _, err := db.SaveReport(imagePath, report); err != nil {
				logger.Warn("保存检测记录失败: %v", err)
			}
		}
		result = report
	case "identify":
		if cfg.ReferenceDir == "" {
			fmt.Println("[ERROR] 缺少参考图目录，请使用 -refs 参数指定")
			return 2
		}
		c, err := buildComponents(cfg, true)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return 1
		}
		defer c.Close()
		matches, err := c.pipeline.Identify(ctx, frame)
		if err != nil {
			fmt.Printf("[ERROR] 比对失败: %v\n", err)
			return 1
		}
		if db != nil {
			if _, err := db.SaveIdentify(imagePath, frame.Cols(), frame.Rows(), matches); err != nil {
				logger.Warn("保存比对记录失败: %v", err)
			}
		}
		result = matches
	default:
		fmt.Printf("[ERROR] 未知命令: %s\n", command)
		printHelp()
		return 2
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Printf("[ERROR] 输出结果失败: %v\n", err)
		return 1
	}
	return 0
}

// installOCR 下载 OCR 模型
func installOCR() int {
	in := ocr.NewInstaller("")
	if in.Installed() {
		fmt.Printf("[INFO] OCR 模型已安装: %s\n", in.Dir)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("[INFO] 正在下载 OCR 模型到 %s\n", in.Dir)
	last := -1
	err := in.Install(ctx, func(p float64) {
		if int(p)/10 != last {
			last = int(p) / 10
			fmt.Printf("[INFO] 进度 %.0f%%\n", p)
		}
	})
	if err != nil {
		fmt.Printf("[ERROR] 下载失败: %v\n", err)
		return 1
	}
	fmt.Println("[INFO] 下载完成")
	return 0
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("packeye v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("packeye - 商品包装检测与识别")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  packeye [选项] detect <图片>")
	fmt.Println("  packeye [选项] identify <图片>")
	fmt.Println()
	fmt.Println("选项:")
	newFlags().fs.PrintDefaults()
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 绿色背景下检测，使用 DNN 模型并保存调试图")
	fmt.Println("  packeye -bg green -segment -model ssd.onnx -labels labels.txt -out ./debug detect shelf.jpg")
	fmt.Println()
	fmt.Println("  # 与参考图库比对")
	fmt.Println("  packeye -refs ./refs -db history.db identify crop.png")
	fmt.Println()
	fmt.Println("  # 下载 OCR 模型")
	fmt.Println("  packeye -install-ocr")
	fmt.Println()
	fmt.Printf("配置文件位置: %s\n", config.GetDefaultManager().GetConfigFile())
}
