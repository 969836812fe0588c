// Package hostsfile 读写 Knot Resolver 使用的 hosts.local 静态解析文件
//
// 文件格式为每行 "ip hostname"，空行和 # 开头的行为注释。
package hostsfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"
)

// Entry 一条静态解析记录
type Entry struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
}

// Parse 解析hosts文件内容
// 跳过空行和注释行；只取每行前两个字段，不足两个字段的行忽略。行的长度不受限制
func Parse(r io.Reader) ([]Entry, error) {
	entries := make([]Entry, 0)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("读取hosts文件失败: %w", err)
		}

		if entry, ok := parseLine(line); ok {
			entries = append(entries, entry)
		}
		if err != nil {
			break
		}
	}

	return entries, nil
}

func parseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Entry{}, false
	}
	return Entry{IP: fields[0], Hostname: fields[1]}, true
}

// Format 序列化为文件内容，每条记录一行
func Format(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.IP)
		buf.WriteByte(' ')
		buf.WriteString(e.Hostname)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Normalize 去掉字段两端的空白
func Normalize(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{
			IP:       strings.TrimSpace(e.IP),
			Hostname: strings.TrimSpace(e.Hostname),
		}
	}
	return out
}

// Validate 校验所有记录，返回全部问题
// 字段不能为空，也不能包含空白字符，否则写出的文件无法按原样读回
func Validate(entries []Entry) error {
	var result *multierror.Error

	for i, e := range entries {
		if err := checkField("ip", e.IP); err != nil {
			result = multierror.Append(result, fmt.Errorf("第 %d 条记录: %w", i+1, err))
		}
		if err := checkField("hostname", e.Hostname); err != nil {
			result = multierror.Append(result, fmt.Errorf("第 %d 条记录: %w", i+1, err))
		}
	}

	if result != nil {
		result.ErrorFormat = listFormat
	}
	return result.ErrorOrNil()
}

func checkField(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s 不能为空", name)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%s 不能包含空白字符: %q", name, value)
	}
	return nil
}

func listFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
