package stats

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var latencyKeyPattern = regexp.MustCompile(`\d+ms|slow$`)

// 以计数方式显示的应答/请求字段
var counterKeys = map[string]bool{
	"noerror":  true,
	"nodata":   true,
	"nxdomain": true,
	"servfail": true,
	"udp":      true,
	"tcp":      true,
	"dot":      true,
	"doh":      true,
	"internal": true,
	"xdp":      true,
	"cached":   true,
	"stale":    true,
}

// FormatValue 按字段名把统计值格式化为可读文本
func FormatValue(key string, v Value) string {
	if v.Null {
		return ""
	}
	if !v.Numeric {
		return v.Text
	}

	n := v.Number
	switch {
	case strings.Contains(key, "percent"):
		return strconv.FormatFloat(n, 'f', 2, 64) + "%"
	case strings.Contains(key, "rss"), strings.Contains(key, "bytes"), strings.Contains(key, "memory"):
		return FormatBytes(n)
	case isCountLike(key, n):
		return FormatCount(n)
	}
	return strconv.FormatFloat(n, 'f', 3, 64)
}

func isCountLike(key string, n float64) bool {
	return isInteger(n) ||
		strings.Contains(key, "count") ||
		strings.Contains(key, "total") ||
		latencyKeyPattern.MatchString(key) ||
		counterKeys[key]
}

func isInteger(n float64) bool {
	return n == math.Trunc(n) && !math.IsInf(n, 0)
}

// FormatBytes 以1024为进制格式化字节数，保留一位小数
func FormatBytes(n float64) string {
	const unit = 1024
	switch {
	case n < unit:
		return strconv.FormatFloat(n, 'f', -1, 64) + " B"
	case n < unit*unit:
		return fmt.Sprintf("%.1f KB", n/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", n/(unit*unit))
	}
	return fmt.Sprintf("%.1f GB", n/(unit*unit*unit))
}

// FormatCount 千位分隔格式，非整数最多保留三位小数
func FormatCount(n float64) string {
	if isInteger(n) && math.Abs(n) < 1e15 {
		return humanize.Comma(int64(n))
	}
	// CommafWithDigits 只截断，先四舍五入到三位小数
	return humanize.CommafWithDigits(math.Round(n*1000)/1000, 3)
}
