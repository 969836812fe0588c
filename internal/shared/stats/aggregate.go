package stats

// AllInstances 汇总所有实例的选择项
const AllInstances = "All"

// Selection 实例选择结果
type Selection struct {
	Requested string `json:"requested"`
	Effective string `json:"effective"`
	Fallback  bool   `json:"fallback"`
}

// Aggregate 汇总所有实例的统计
//
// 以第一个实例的结构为基准：数字字段初始化为0，其余字段为空值；
// 随后累加所有实例的数字字段。后续实例中新出现的数字字段和分组会追加到结果中，
// 新出现的非数字字段不会加入。
func Aggregate(s *Snapshot) *Instance {
	agg := &Instance{ID: AllInstances}
	if s == nil || len(s.Instances) == 0 {
		return agg
	}

	for _, section := range s.Instances[0].Sections {
		target := agg.Section(section.Name)
		if target == nil {
			target = agg.addSection(section.Name)
		}
		for _, f := range section.Fields {
			if f.Value.Numeric {
				target.set(f.Key, Number(0))
			} else {
				target.set(f.Key, Null())
			}
		}
	}

	for _, inst := range s.Instances {
		for _, section := range inst.Sections {
			target := agg.Section(section.Name)
			if target == nil {
				target = agg.addSection(section.Name)
			}
			for _, f := range section.Fields {
				if !f.Value.Numeric {
					continue
				}
				current, ok := target.Get(f.Key)
				if !ok || !current.Numeric {
					target.set(f.Key, Number(f.Value.Number))
					continue
				}
				target.set(f.Key, Number(current.Number+f.Value.Number))
			}
		}
	}

	deriveCacheRatios(agg)
	return agg
}

// deriveCacheRatios 根据汇总后的 hit/lookup 计算缓存命中率
func deriveCacheRatios(agg *Instance) {
	cache := agg.Section("cache")
	if cache == nil {
		return
	}

	if flag, ok := cache.Get("hit_ratio_compute"); ok && flag.Numeric && flag.Number != 0 {
		cache.set("hit_percent", Number(percentOf(cache.NumberOf("hit"), cache.NumberOf("lookup"))))
		cache.remove("hit_ratio_compute")
	}

	if cache.Has("hit") && cache.Has("lookup") {
		cache.set("hit_percent_calculated", Number(percentOf(cache.NumberOf("hit"), cache.NumberOf("lookup"))))
	}
}

func percentOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// Select 选择要展示的实例
// 选择 All 时返回汇总视图；指定的实例不存在时回退到汇总视图并标记 Fallback
func Select(s *Snapshot, id string) (*Instance, Selection) {
	if id == "" {
		id = AllInstances
	}
	sel := Selection{Requested: id, Effective: id}

	if id != AllInstances {
		if inst, ok := s.Instance(id); ok {
			return inst, sel
		}
		sel.Effective = AllInstances
		sel.Fallback = true
	}

	return Aggregate(s), sel
}
