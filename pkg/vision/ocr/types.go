// Package ocr 封装 PaddleOCR 引擎，识别包装上的文字
package ocr

import (
	"os"
	"path/filepath"
	"runtime"
)

// Result 一条文字识别结果
type Result struct {
	// Text 识别的文字内容
	Text string `json:"text"`
	// Confidence 识别置信度 (0-1)
	Confidence float64 `json:"confidence"`
	// Box 文字外接框 [x1, y1, x2, y2]
	Box [4]int `json:"box"`
}

// Config OCR 配置
type Config struct {
	// OnnxRuntimeLibPath ONNX Runtime 动态库路径
	OnnxRuntimeLibPath string `json:"onnxruntime_lib_path"`
	// DetModelPath 检测模型路径
	DetModelPath string `json:"det_model_path"`
	// RecModelPath 识别模型路径
	RecModelPath string `json:"rec_model_path"`
	// DictPath 字典文件路径
	DictPath string `json:"dict_path"`
}

// DefaultConfig 默认配置，按可执行文件目录、用户模型目录和工作目录依次查找模型
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: findFirst(onnxRuntimeCandidates()),
		DetModelPath:       findFirst(modelCandidates("det.onnx")),
		RecModelPath:       findFirst(modelCandidates("rec.onnx")),
		DictPath:           findFirst(modelCandidates("dict.txt")),
	}
}

// Available 检查配置中的文件是否都存在
func (c Config) Available() bool {
	return fileExists(c.OnnxRuntimeLibPath) &&
		fileExists(c.DetModelPath) &&
		fileExists(c.RecModelPath) &&
		fileExists(c.DictPath)
}

// getExecutableDir 获取可执行文件所在目录
func getExecutableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

func onnxRuntimeCandidates() []string {
	execDir := getExecutableDir()
	lib := onnxRuntimeFile().rel

	var local string
	switch runtime.GOOS {
	case "darwin":
		local = "libonnxruntime.dylib"
	case "windows":
		local = "onnxruntime.dll"
	default:
		local = "libonnxruntime.so"
	}
	return []string{
		filepath.Join(execDir, local),
		filepath.Join(execDir, "models", lib),
		filepath.Join(UserModelDir(), lib),
		filepath.Join("models", lib),
	}
}

// modelCandidates 可执行文件目录、用户模型目录、工作目录
func modelCandidates(filename string) []string {
	return []string{
		filepath.Join(getExecutableDir(), "models", "paddle_weights", filename),
		filepath.Join(UserModelDir(), "paddle_weights", filename),
		filepath.Join("models", "paddle_weights", filename),
	}
}

// findFirst 返回第一个存在的路径，都不存在时返回最后一个
func findFirst(paths []string) string {
	for _, p := range paths {
		if fileExists(p) {
			return p
		}
	}
	return paths[len(paths)-1]
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
