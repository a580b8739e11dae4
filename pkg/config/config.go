package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

// maxDefaultWorkers 默认并发上限，分类器通常本身就是多线程的
const maxDefaultWorkers = 4

// PipelineConfig 识别流水线配置
type PipelineConfig struct {
	// 分类器输入
	InputWidth     int     `json:"input_width"`
	InputHeight    int     `json:"input_height"`
	Rotation       float64 `json:"rotation"`
	MaintainAspect bool    `json:"maintain_aspect"`
	MinConfidence  float32 `json:"min_confidence"`

	// 候选区域
	Background         string  `json:"background"`
	Segment            bool    `json:"segment"`
	Tile               bool    `json:"tile"`
	MinArea            float32 `json:"min_area"`
	MaxArea            float32 `json:"max_area"`
	DilateKernelWidth  int     `json:"dilate_kernel_width"`
	DilateKernelHeight int     `json:"dilate_kernel_height"`
	DilateIterations   int     `json:"dilate_iterations"`
	DilateMargin       int     `json:"dilate_margin"`

	Workers int `json:"workers"`

	// 模型: 设置 ModelPath 时使用 DNN 检测模型，否则使用 OCR 文字分类
	ModelPath   string            `json:"model_path,omitempty"`
	ModelConfig string            `json:"model_config,omitempty"`
	LabelsPath  string            `json:"labels_path,omitempty"`
	Keywords    map[string]string `json:"keywords,omitempty"`

	// 参考图目录，文件名前缀为标签
	ReferenceDir string `json:"reference_dir,omitempty"`
	// 调试图输出目录，为空则不保存
	ArtifactDir string `json:"artifact_dir,omitempty"`
	// 检测记录数据库 (SQLite)，为空则不记录
	DatabasePath string `json:"database_path,omitempty"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`
}

// DefaultPipelineConfig 默认配置
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		InputWidth:         300,
		InputHeight:        300,
		MinConfidence:      0.1,
		Background:         "none",
		MinArea:            2048,
		MaxArea:            2048 * 1536,
		DilateKernelWidth:  8,
		DilateKernelHeight: 3,
		DilateIterations:   2,
		DilateMargin:       256,
		Workers:            DefaultWorkers(),
		LogLevel:           "INFO",
	}
}

// DefaultWorkers 逻辑 CPU 数，最多 maxDefaultWorkers
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxDefaultWorkers)
}

// Validate 检查配置取值
func (c *PipelineConfig) Validate() error {
	var errs []error
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		errs = append(errs, fmt.Errorf("输入尺寸无效: %dx%d", c.InputWidth, c.InputHeight))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("置信度阈值应在 0-1 之间: %v", c.MinConfidence))
	}
	if c.MinArea < 0 || (c.MaxArea > 0 && c.MaxArea < c.MinArea) {
		errs = append(errs, fmt.Errorf("区域面积范围无效: %v-%v", c.MinArea, c.MaxArea))
	}
	if c.DilateKernelWidth < 0 || c.DilateKernelHeight < 0 || c.DilateIterations < 0 || c.DilateMargin < 0 {
		errs = append(errs, fmt.Errorf("膨胀参数不能为负: 核 %dx%d 次数 %d 边距 %d",
			c.DilateKernelWidth, c.DilateKernelHeight, c.DilateIterations, c.DilateMargin))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("并发数至少为 1: %d", c.Workers))
	}
	return errors.Join(errs...)
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".packeye"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// NewManagerWithFile 使用指定配置文件
func NewManagerWithFile(path string) *Manager {
	return &Manager{
		configDir:  filepath.Dir(path),
		configFile: path,
	}
}

// Load 加载配置，文件中缺少的字段保持默认值
func (m *Manager) Load() (*PipelineConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return DefaultPipelineConfig(), nil
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return DefaultPipelineConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultPipelineConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultPipelineConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := config.Validate(); err != nil {
		return DefaultPipelineConfig(), fmt.Errorf("配置无效: %w", err)
	}

	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *PipelineConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*PipelineConfig, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *PipelineConfig) error {
	return defaultManager.Save(config)
}
