package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zoeyai/packeye/internal/logger"
)

// DefaultModelURL go-ocr 模型仓库
const DefaultModelURL = "https://huggingface.co/getcharzp/go-ocr/resolve/main"

// ErrInstalling 已有下载在进行
var ErrInstalling = errors.New("正在下载中")

// Installer 下载 PaddleOCR 模型与 ONNX Runtime 到本地目录
//
// 目录结构与可执行文件旁的 models 目录一致:
//
//	<dir>/lib/onnxruntime_<arch>.so
//	<dir>/paddle_weights/{det.onnx, rec.onnx, dict.txt}
type Installer struct {
	Dir     string
	BaseURL string
	Client  *http.Client

	mu          sync.Mutex
	downloading bool
}

type modelFile struct {
	name string
	// rel 相对 Dir 与 BaseURL 的路径
	rel  string
	size int64
}

// NewInstaller 创建安装器，dir 为空时使用 ~/.packeye/models
func NewInstaller(dir string) *Installer {
	if dir == "" {
		dir = UserModelDir()
	}
	return &Installer{Dir: dir, BaseURL: DefaultModelURL, Client: http.DefaultClient}
}

// UserModelDir 用户目录下的模型目录
func UserModelDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".packeye", "models")
}

// Config 安装目录对应的 OCR 配置
func (in *Installer) Config() Config {
	return Config{
		OnnxRuntimeLibPath: filepath.Join(in.Dir, onnxRuntimeFile().rel),
		DetModelPath:       filepath.Join(in.Dir, "paddle_weights", "det.onnx"),
		RecModelPath:       filepath.Join(in.Dir, "paddle_weights", "rec.onnx"),
		DictPath:           filepath.Join(in.Dir, "paddle_weights", "dict.txt"),
	}
}

// Installed 所有文件是否已就绪
func (in *Installer) Installed() bool {
	return in.Config().Available()
}

// Install 下载缺少的文件，onProgress 参数为 0-100 的进度，可为空
func (in *Installer) Install(ctx context.Context, onProgress func(float64)) error {
	in.mu.Lock()
	if in.downloading {
		in.mu.Unlock()
		return ErrInstalling
	}
	in.downloading = true
	in.mu.Unlock()

	defer func() {
		in.mu.Lock()
		in.downloading = false
		in.mu.Unlock()
	}()

	files := append([]modelFile{onnxRuntimeFile()}, weightFiles()...)

	var total, done int64
	for _, f := range files {
		total += f.size
	}
	report := func(n int64) {
		if onProgress != nil {
			onProgress(min(float64(done+n)/float64(total)*100, 100))
		}
	}

	for _, f := range files {
		dest := filepath.Join(in.Dir, f.rel)
		if fileExists(dest) {
			logger.Debug("已存在，跳过: %s", dest)
			done += f.size
			report(0)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
		if err := in.download(ctx, in.BaseURL+"/"+filepath.ToSlash(f.rel), dest, report); err != nil {
			return fmt.Errorf("下载 %s 失败: %w", f.name, err)
		}
		done += f.size
		logger.Info("下载完成: %s", dest)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// Uninstall 删除安装目录
func (in *Installer) Uninstall() error {
	return os.RemoveAll(in.Dir)
}

func (in *Installer) download(ctx context.Context, url, dest string, onProgress func(int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := in.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// 先写临时文件，完整下载后再改名
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, &progressReader{r: resp.Body, onProgress: onProgress})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

type progressReader struct {
	r          io.Reader
	n          int64
	onProgress func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.n += int64(n)
	if n > 0 && p.onProgress != nil {
		p.onProgress(p.n)
	}
	return n, err
}

func weightFiles() []modelFile {
	return []modelFile{
		{name: "det.onnx", rel: filepath.Join("paddle_weights", "det.onnx"), size: 3 << 20},
		{name: "rec.onnx", rel: filepath.Join("paddle_weights", "rec.onnx"), size: 5 << 20},
		{name: "dict.txt", rel: filepath.Join("paddle_weights", "dict.txt"), size: 200 << 10},
	}
}

// onnxRuntimeFile 当前平台的 ONNX Runtime 库
func onnxRuntimeFile() modelFile {
	var name string
	switch runtime.GOOS {
	case "windows":
		name = "onnxruntime.dll"
	case "darwin":
		name = "onnxruntime_" + runtime.GOARCH + ".dylib"
	default:
		name = "onnxruntime_" + runtime.GOARCH + ".so"
	}
	return modelFile{name: name, rel: filepath.Join("lib", name), size: 50 << 20}
}
