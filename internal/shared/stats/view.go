package stats

import (
	"errors"
	"sort"
	"strings"
)

// ErrEmptySnapshot 快照中没有实例
var ErrEmptySnapshot = errors.New("指标数据为空，没有任何解析器实例")

// Card 单个统计项的展示数据
type Card struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// SectionView 分组展示数据
type SectionView struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Cards []Card `json:"cards"`
}

// View 仪表盘一次刷新所需的全部数据
type View struct {
	Instances []string `json:"instances"`
	Selection
	Title    string        `json:"title"`
	Sections []SectionView `json:"sections"`
	Charts   []Chart       `json:"charts"`
}

// BuildView 根据快照和所选实例生成视图
func BuildView(s *Snapshot, id string) (*View, error) {
	if s == nil || len(s.Instances) == 0 {
		return nil, ErrEmptySnapshot
	}

	inst, sel := Select(s, id)

	view := &View{
		Instances: s.IDs(),
		Selection: sel,
		Title:     "全部统计" + titleSuffix(sel),
		Sections:  RenderSections(inst),
		Charts:    Charts(inst),
	}
	return view, nil
}

func titleSuffix(sel Selection) string {
	switch {
	case sel.Fallback:
		return " (汇总 - 回退)"
	case sel.Effective == AllInstances:
		return " (汇总)"
	default:
		return " (" + sel.Effective + ")"
	}
}

// RenderSections 生成排序后的分组卡片
// summary 分组排在最前，其余按名称排序；字段按名称排序，空值不显示
func RenderSections(inst *Instance) []SectionView {
	sections := make([]SectionView, 0, len(inst.Sections))

	for _, section := range inst.Sections {
		fields := make([]Field, len(section.Fields))
		copy(fields, section.Fields)
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].Key < fields[j].Key
		})

		sv := SectionView{
			Name:  section.Name,
			Title: humanizeKey(section.Name),
			Cards: make([]Card, 0, len(fields)),
		}
		for _, f := range fields {
			if f.Value.Null {
				continue
			}
			sv.Cards = append(sv.Cards, Card{
				Key:   f.Key,
				Label: humanizeKey(f.Key),
				Value: FormatValue(f.Key, f.Value),
			})
		}
		sections = append(sections, sv)
	}

	sort.SliceStable(sections, func(i, j int) bool {
		a, b := sections[i].Name, sections[j].Name
		if a == "summary" {
			return b != "summary"
		}
		if b == "summary" {
			return false
		}
		return a < b
	})

	return sections
}

func humanizeKey(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
