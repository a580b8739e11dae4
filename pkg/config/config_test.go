package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPipelineConfig(t *testing.T) {
	config := DefaultPipelineConfig()

	if config.InputWidth != 300 || config.InputHeight != 300 {
		t.Errorf("默认输入尺寸应为 300x300, 实际为 %dx%d", config.InputWidth, config.InputHeight)
	}
	if config.MinConfidence != 0.1 {
		t.Errorf("默认置信度阈值应为 0.1, 实际为 %v", config.MinConfidence)
	}
	if config.MinArea != 2048 || config.MaxArea != 2048*1536 {
		t.Errorf("默认面积范围错误: %v-%v", config.MinArea, config.MaxArea)
	}
	if config.DilateKernelWidth != 8 || config.DilateKernelHeight != 3 || config.DilateIterations != 2 || config.DilateMargin != 256 {
		t.Errorf("默认膨胀参数错误: 核 %dx%d 次数 %d 边距 %d",
			config.DilateKernelWidth, config.DilateKernelHeight, config.DilateIterations, config.DilateMargin)
	}
	if config.Segment || config.Tile {
		t.Error("默认不应启用分割与切块")
	}
	if config.Workers < 1 || config.Workers > maxDefaultWorkers {
		t.Errorf("默认并发数应在 1-%d 之间, 实际为 %d", maxDefaultWorkers, config.Workers)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("默认配置应有效: %v", err)
	}

	t.Logf("默认配置: %+v", config)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PipelineConfig)
	}{
		{"输入尺寸为零", func(c *PipelineConfig) { c.InputWidth = 0 }},
		{"置信度超过 1", func(c *PipelineConfig) { c.MinConfidence = 1.5 }},
		{"面积范围颠倒", func(c *PipelineConfig) { c.MinArea, c.MaxArea = 5000, 100 }},
		{"并发数为零", func(c *PipelineConfig) { c.Workers = 0 }},
		{"膨胀边距为负", func(c *PipelineConfig) { c.DilateMargin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultPipelineConfig()
			tt.modify(config)
			if config.Validate() == nil {
				t.Error("应返回校验错误")
			}
		})
	}
}

func TestManagerSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if manager.Exists() {
		t.Error("初始时配置文件不应存在")
	}

	config := DefaultPipelineConfig()
	config.Rotation = 90
	config.Background = "green"
	config.Segment = true
	config.Workers = 2
	config.Keywords = map[string]string{"milk": "productA"}
	config.ReferenceDir = "/data/refs"

	if err := manager.Save(config); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}
	if !manager.Exists() {
		t.Error("保存后配置文件应存在")
	}

	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if loaded.Rotation != 90 || loaded.Background != "green" || !loaded.Segment || loaded.Workers != 2 {
		t.Errorf("配置不匹配: %+v", loaded)
	}
	if loaded.Keywords["milk"] != "productA" || loaded.ReferenceDir != "/data/refs" {
		t.Errorf("配置不匹配: %+v", loaded)
	}

	t.Logf("加载的配置: %+v", loaded)
}

func TestManagerLoadPartialFile(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if err := os.WriteFile(manager.GetConfigFile(), []byte(`{"rotation": 180, "tile": true}`), 0600); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	config, err := manager.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.Rotation != 180 || !config.Tile {
		t.Errorf("文件中的字段应生效: %+v", config)
	}
	if config.InputWidth != 300 || config.MinArea != 2048 {
		t.Errorf("缺少的字段应保持默认值: %+v", config)
	}
}

func TestManagerLoadInvalidValues(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if err := os.WriteFile(manager.GetConfigFile(), []byte(`{"workers": 0}`), 0600); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
	config, err := manager.Load()
	if err == nil {
		t.Error("无效配置应返回错误")
	}
	if config == nil || config.Workers < 1 {
		t.Error("出错时应返回默认配置")
	}
}

func TestManagerSaveRejectsInvalid(t *testing.T) {
	manager := NewManagerWithDir(t.TempDir())
	config := DefaultPipelineConfig()
	config.InputHeight = -1
	if err := manager.Save(config); err == nil {
		t.Error("无效配置不应被保存")
	}
	if manager.Exists() {
		t.Error("保存失败时不应生成文件")
	}
}

func TestManagerClear(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if err := manager.Save(DefaultPipelineConfig()); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}
	if !manager.Exists() {
		t.Fatal("保存后配置文件应存在")
	}

	if err := manager.Clear(); err != nil {
		t.Fatalf("清除配置失败: %v", err)
	}
	if manager.Exists() {
		t.Error("清除后配置文件不应存在")
	}

	// 清除不存在的文件不应报错
	if err := manager.Clear(); err != nil {
		t.Errorf("清除不存在的配置不应报错: %v", err)
	}
}

func TestManagerLoadNonExistent(t *testing.T) {
	manager := NewManagerWithDir(t.TempDir())

	config, err := manager.Load()
	if err != nil {
		t.Fatalf("加载不存在的配置不应报错: %v", err)
	}
	if config.InputWidth != DefaultPipelineConfig().InputWidth {
		t.Errorf("应返回默认配置")
	}
}

func TestManagerLoadCorruptedFile(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	configFile := filepath.Join(tempDir, "config.json")
	if err := os.WriteFile(configFile, []byte("not valid json"), 0600); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	config, err := manager.Load()
	if err == nil {
		t.Error("加载损坏的配置应返回错误")
	}
	if config == nil {
		t.Error("即使出错也应返回默认配置")
	}

	t.Logf("加载损坏配置的错误: %v", err)
}

func TestManagerPaths(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if manager.GetConfigDir() != tempDir {
		t.Errorf("GetConfigDir 应为 %s", tempDir)
	}
	expectedFile := filepath.Join(tempDir, "config.json")
	if manager.GetConfigFile() != expectedFile {
		t.Errorf("GetConfigFile 应为 %s", expectedFile)
	}

	custom := filepath.Join(tempDir, "sub", "line3.json")
	m2 := NewManagerWithFile(custom)
	if m2.GetConfigFile() != custom || m2.GetConfigDir() != filepath.Join(tempDir, "sub") {
		t.Errorf("NewManagerWithFile 路径错误: %s %s", m2.GetConfigDir(), m2.GetConfigFile())
	}
	if err := m2.Save(DefaultPipelineConfig()); err != nil {
		t.Errorf("应自动创建配置目录: %v", err)
	}
}

func TestDefaultManager(t *testing.T) {
	manager := GetDefaultManager()
	if manager == nil {
		t.Fatal("GetDefaultManager 返回 nil")
	}

	homeDir, _ := os.UserHomeDir()
	expectedDir := filepath.Join(homeDir, ".packeye")
	if manager.GetConfigDir() != expectedDir {
		t.Errorf("默认配置目录应为 %s, 实际为 %s", expectedDir, manager.GetConfigDir())
	}
}

func TestConfigFilePermissions(t *testing.T) {
	manager := NewManagerWithDir(t.TempDir())

	if err := manager.Save(DefaultPipelineConfig()); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	info, err := os.Stat(manager.GetConfigFile())
	if err != nil {
		t.Fatalf("获取文件信息失败: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Logf("警告: 配置文件权限为 %o", perm)
	}
}

// BenchmarkSaveLoad 基准测试
func BenchmarkSaveLoad(b *testing.B) {
	manager := NewManagerWithDir(b.TempDir())
	config := DefaultPipelineConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.Save(config)
		manager.Load()
	}
}
