// Package logging 基于 zerolog 提供全局日志配置。
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	log := logging.With().Str("component", "recommend").Logger()
//	log.Info().Int("users", n).Msg("history loaded")
//
// 核心算法包（model、recall、filter、rank、rerank）不打日志，
// 训练进度通过 SVDConfig.OnEpoch 回调交给调用方记录。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置，对应配置文件的 log 段。
type Config struct {
	// Level: trace / debug / info / warn / error / disabled，默认 info
	Level string `yaml:"level"`

	// Format: json / console，默认 json
	Format string `yaml:"format"`

	// Output 默认 os.Stderr
	Output io.Writer `yaml:"-"`
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(Config{})
}

// Init 重新配置全局 logger，可重复调用。
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	log = zerolog.New(output).With().Timestamp().Logger()
}

// ParseLevel 把字符串转为 zerolog.Level，无法识别时为 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ValidateLevel 检查 level 能否被 ParseLevel 识别，空串视为 info。
func ValidateLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}

// Validate 检查 Level 与 Format。
func (c Config) Validate() error {
	if err := ValidateLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("unknown log format %q", c.Format)
}

// Logger 返回全局 logger 的副本。
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger 替换全局 logger，主要用于测试。
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With 创建带固定字段的子 logger。
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Nop 返回丢弃所有输出的 logger。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
