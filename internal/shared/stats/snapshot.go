// Package stats 解析 Knot Resolver 的 JSON 指标快照，并生成汇总视图、格式化文本和图表数据。
package stats

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON 数据不是合法的JSON
	ErrInvalidJSON = errors.New("无法解析JSON数据")
	// ErrNotObject JSON顶层不是对象
	ErrNotObject = errors.New("JSON顶层不是对象")
)

// Value 单个统计值，数字或非数字
type Value struct {
	Number  float64
	Text    string
	Numeric bool
	Null    bool
}

// Number 构造数字值
func Number(n float64) Value {
	return Value{Number: n, Numeric: true}
}

// Text 构造文本值
func Text(s string) Value {
	return Value{Text: s}
}

// Null 构造空值
func Null() Value {
	return Value{Null: true}
}

// Field 统计字段
type Field struct {
	Key   string
	Value Value
}

// Section 一组相关的统计字段，字段顺序与原始文档一致
type Section struct {
	Name   string
	Fields []Field
}

// Get 获取字段值
func (s *Section) Get(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Has 判断字段是否存在
func (s *Section) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// NumberOf 获取数字字段，缺失或非数字时返回0
func (s *Section) NumberOf(key string) float64 {
	v, ok := s.Get(key)
	if !ok || !v.Numeric {
		return 0
	}
	return v.Number
}

func (s *Section) set(key string, v Value) {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			s.Fields[i].Value = v
			return
		}
	}
	s.Fields = append(s.Fields, Field{Key: key, Value: v})
}

func (s *Section) remove(key string) {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			s.Fields = append(s.Fields[:i], s.Fields[i+1:]...)
			return
		}
	}
}

// Instance 单个解析器实例的全部统计
type Instance struct {
	ID       string
	Sections []Section
}

// Section 按名称查找分组，不存在返回nil
func (i *Instance) Section(name string) *Section {
	if i == nil {
		return nil
	}
	for idx := range i.Sections {
		if i.Sections[idx].Name == name {
			return &i.Sections[idx]
		}
	}
	return nil
}

func (i *Instance) addSection(name string) *Section {
	i.Sections = append(i.Sections, Section{Name: name})
	return &i.Sections[len(i.Sections)-1]
}

// Snapshot 一次轮询得到的全部实例统计，实例顺序与原始文档一致
type Snapshot struct {
	Instances []Instance
}

// IDs 返回所有实例ID
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Instances))
	for _, inst := range s.Instances {
		ids = append(ids, inst.ID)
	}
	return ids
}

// Instance 按ID查找实例
func (s *Snapshot) Instance(id string) (*Instance, bool) {
	for idx := range s.Instances {
		if s.Instances[idx].ID == id {
			return &s.Instances[idx], true
		}
	}
	return nil, false
}

// ParseSnapshot 解析指标JSON，保留键的原始顺序
// 非对象的分组会被忽略；重复的键以最后一次出现的值为准，位置保持第一次出现的位置
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	snap := &Snapshot{}
	seen := make(map[string]int)
	root.ForEach(func(key, value gjson.Result) bool {
		inst := Instance{ID: key.String(), Sections: parseSections(value)}
		if idx, ok := seen[inst.ID]; ok {
			snap.Instances[idx] = inst
			return true
		}
		seen[inst.ID] = len(snap.Instances)
		snap.Instances = append(snap.Instances, inst)
		return true
	})

	return snap, nil
}

func parseSections(value gjson.Result) []Section {
	if !value.IsObject() {
		return nil
	}

	var sections []Section
	seen := make(map[string]int)
	value.ForEach(func(sectionKey, sectionValue gjson.Result) bool {
		if !sectionValue.IsObject() {
			return true
		}
		section := Section{Name: sectionKey.String(), Fields: parseFields(sectionValue)}
		if idx, ok := seen[section.Name]; ok {
			sections[idx] = section
			return true
		}
		seen[section.Name] = len(sections)
		sections = append(sections, section)
		return true
	})
	return sections
}

func parseFields(value gjson.Result) []Field {
	var fields []Field
	seen := make(map[string]int)
	value.ForEach(func(fieldKey, fieldValue gjson.Result) bool {
		field := Field{Key: fieldKey.String(), Value: valueOf(fieldValue)}
		if idx, ok := seen[field.Key]; ok {
			fields[idx] = field
			return true
		}
		seen[field.Key] = len(fields)
		fields = append(fields, field)
		return true
	})
	return fields
}

func valueOf(r gjson.Result) Value {
	switch r.Type {
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return Text(r.Str)
	case gjson.True, gjson.False:
		return Text(r.String())
	case gjson.Null:
		return Null()
	default:
		return Text(r.Raw)
	}
}
