package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PACKEYE_"

// ReadEnv 读取 .env 文件与进程环境变量，进程环境变量优先
// 文件不存在时忽略
func ReadEnv(files ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("解析环境文件失败 [%s]: %w", f, err)
		}
		for k, v := range values {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv 用 PACKEYE_* 变量覆盖配置，无法解析的值返回错误且不修改对应字段
func (c *PipelineConfig) ApplyEnv(env map[string]string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env[EnvPrefix+key]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env[EnvPrefix+key]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := env[EnvPrefix+key]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("BACKGROUND", &c.Background)
	boolean("SEGMENT", &c.Segment)
	boolean("TILE", &c.Tile)
	float("ROTATION", &c.Rotation)
	integer("WORKERS", &c.Workers)
	integer("DILATE_KERNEL_WIDTH", &c.DilateKernelWidth)
	integer("DILATE_KERNEL_HEIGHT", &c.DilateKernelHeight)
	integer("DILATE_ITERATIONS", &c.DilateIterations)
	integer("DILATE_MARGIN", &c.DilateMargin)
	str("MODEL_PATH", &c.ModelPath)
	str("MODEL_CONFIG", &c.ModelConfig)
	str("LABELS_PATH", &c.LabelsPath)
	str("REFERENCE_DIR", &c.ReferenceDir)
	str("ARTIFACT_DIR", &c.ArtifactDir)
	str("DATABASE", &c.DatabasePath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)

	conf := float64(c.MinConfidence)
	float("MIN_CONFIDENCE", &conf)
	c.MinConfidence = float32(conf)

	return errors.Join(errs...)
}
