// Package logging 统一配置各子系统的日志输出
package logging

import (
	"fmt"
	"strings"

	golog "github.com/ipfs/go-log/v2"
)

// 支持的输出格式
const (
	FormatColor = "color"
	FormatPlain = "plain"
	FormatJSON  = "json"
)

// Logger 返回指定子系统的日志器
func Logger(system string) *golog.ZapEventLogger {
	return golog.Logger(system)
}

// Setup 根据配置设置日志级别和格式
func Setup(level, format string) error {
	lvl, err := golog.LevelFromString(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", level, err)
	}

	var logFormat golog.LogFormat
	switch strings.ToLower(format) {
	case FormatColor, "":
		logFormat = golog.ColorizedOutput
	case FormatPlain:
		logFormat = golog.PlaintextOutput
	case FormatJSON:
		logFormat = golog.JSONOutput
	default:
		return fmt.Errorf("无效的日志格式 %q", format)
	}

	golog.SetupLogging(golog.Config{
		Format: logFormat,
		Level:  lvl,
		Stderr: true,
	})
	golog.SetAllLoggers(lvl)
	return nil
}
