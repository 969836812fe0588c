package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoInstances = `{
  "kresd1": {
    "answer": {"total": 100, "cached": 60, "stale": 5, "noerror": 90, "nxdomain": 10, "1ms": 70, "slow": 1},
    "request": {"udp": 80, "tcp": 20, "dot": 0},
    "cache": {"hit": 60, "lookup": 100, "backend": "lmdb"},
    "system": {"rss_bytes": 1048576, "cpu_user": 1.25}
  },
  "kresd2": {
    "answer": {"total": 50, "cached": 10, "stale": 0, "noerror": 45, "nxdomain": 5, "1ms": 20, "servfail": 2},
    "request": {"udp": 40, "tcp": 10, "doh": 3},
    "cache": {"hit": 15, "lookup": 50, "backend": "lmdb"},
    "system": {"rss_bytes": 1048576, "cpu_user": 0.5},
    "worker": {"id": 2}
  }
}`

func mustParse(t *testing.T, body string) *Snapshot {
	t.Helper()
	snap, err := ParseSnapshot([]byte(body))
	require.NoError(t, err)
	return snap
}

func TestParseSnapshotKeepsDocumentOrder(t *testing.T) {
	snap := mustParse(t, `{"b": {"z": {"y": 1, "x": 2}, "a": {"k": "v"}}, "a": {}}`)

	assert.Equal(t, []string{"b", "a"}, snap.IDs())

	first := snap.Instances[0]
	require.Len(t, first.Sections, 2)
	assert.Equal(t, "z", first.Sections[0].Name)
	assert.Equal(t, "y", first.Sections[0].Fields[0].Key)
	assert.Equal(t, "x", first.Sections[0].Fields[1].Key)

	v, ok := first.Section("a").Get("k")
	require.True(t, ok)
	assert.False(t, v.Numeric)
	assert.Equal(t, "v", v.Text)
}

func TestParseSnapshotDuplicateKeysLastWins(t *testing.T) {
	snap := mustParse(t, `{
  "a": {"answer": {"total": 1}},
  "b": {"answer": {"total": 2, "cached": 1, "total": 3}},
  "a": {"answer": {"total": 5}, "request": {"udp": 1}, "answer": {"total": 7}}
}`)

	assert.Equal(t, []string{"a", "b"}, snap.IDs())

	a, ok := snap.Instance("a")
	require.True(t, ok)
	require.Len(t, a.Sections, 2)
	assert.Equal(t, "answer", a.Sections[0].Name)
	assert.Equal(t, 7.0, a.Section("answer").NumberOf("total"))

	b, _ := snap.Instance("b")
	require.Len(t, b.Section("answer").Fields, 2)
	assert.Equal(t, 3.0, b.Section("answer").NumberOf("total"))

	agg := Aggregate(snap)
	assert.Equal(t, 10.0, agg.Section("answer").NumberOf("total"))
}

func TestParseSnapshotValueKinds(t *testing.T) {
	snap := mustParse(t, `{"i": {"s": {"n": 1.5, "t": true, "z": null, "o": {"a": 1}, "str": "x"}, "scalar": 5}}`)

	inst := snap.Instances[0]
	require.Len(t, inst.Sections, 1, "non-object sections are ignored")

	s := inst.Section("s")
	n, _ := s.Get("n")
	assert.Equal(t, Number(1.5), n)
	b, _ := s.Get("t")
	assert.Equal(t, Text("true"), b)
	z, _ := s.Get("z")
	assert.True(t, z.Null)
	o, _ := s.Get("o")
	assert.Equal(t, `{"a": 1}`, o.Text)
}

func TestParseSnapshotErrors(t *testing.T) {
	_, err := ParseSnapshot([]byte("<html>"))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ParseSnapshot([]byte(`[1, 2, 3]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseSnapshot([]byte(`42`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestAggregateSumsEveryNumericField(t *testing.T) {
	snap := mustParse(t, twoInstances)
	agg := Aggregate(snap)

	assert.Equal(t, AllInstances, agg.ID)

	// 每个数字字段都等于各实例之和
	for _, inst := range snap.Instances {
		for _, section := range inst.Sections {
			for _, f := range section.Fields {
				if !f.Value.Numeric {
					continue
				}
				var want float64
				for _, other := range snap.Instances {
					want += other.Section(section.Name).NumberOf(f.Key)
				}
				got, ok := agg.Section(section.Name).Get(f.Key)
				require.True(t, ok, "%s.%s missing from aggregate", section.Name, f.Key)
				assert.InDelta(t, want, got.Number, 1e-9, "%s.%s", section.Name, f.Key)
			}
		}
	}
}

func TestAggregateShape(t *testing.T) {
	agg := Aggregate(mustParse(t, twoInstances))

	answer := agg.Section("answer")
	assert.Equal(t, 150.0, answer.NumberOf("total"))
	assert.Equal(t, 2.0, answer.NumberOf("servfail"), "fields first seen in later instances are added")

	backend, ok := agg.Section("cache").Get("backend")
	require.True(t, ok)
	assert.True(t, backend.Null, "non-numeric fields are nulled")

	require.NotNil(t, agg.Section("worker"), "sections first seen in later instances are added")

	// 基准结构来自第一个实例
	assert.Equal(t, "answer", agg.Sections[0].Name)
	assert.Equal(t, "total", answer.Fields[0].Key)
}

func TestAggregateCacheRatios(t *testing.T) {
	agg := Aggregate(mustParse(t, twoInstances))

	assert.InDelta(t, 50.0, agg.Section("cache").NumberOf("hit_percent_calculated"), 1e-9)

	flagged := mustParse(t, `{
		"a": {"cache": {"hit": 3, "lookup": 4, "hit_ratio_compute": 1}},
		"b": {"cache": {"hit": 1, "lookup": 4, "hit_ratio_compute": 1}}
	}`)
	cache := Aggregate(flagged).Section("cache")
	assert.InDelta(t, 50.0, cache.NumberOf("hit_percent"), 1e-9)
	assert.False(t, cache.Has("hit_ratio_compute"))

	zero := Aggregate(mustParse(t, `{"a": {"cache": {"hit": 0, "lookup": 0}}}`))
	assert.Equal(t, 0.0, zero.Section("cache").NumberOf("hit_percent_calculated"))
}

func TestAggregateEmptySnapshot(t *testing.T) {
	agg := Aggregate(&Snapshot{})
	assert.Empty(t, agg.Sections)
	assert.Empty(t, Aggregate(nil).Sections)
}

func TestSelect(t *testing.T) {
	snap := mustParse(t, twoInstances)

	inst, sel := Select(snap, "kresd2")
	assert.Equal(t, "kresd2", inst.ID)
	assert.Equal(t, Selection{Requested: "kresd2", Effective: "kresd2"}, sel)

	inst, sel = Select(snap, "")
	assert.Equal(t, AllInstances, inst.ID)
	assert.False(t, sel.Fallback)

	inst, sel = Select(snap, "kresd9")
	assert.Equal(t, AllInstances, inst.ID)
	assert.Equal(t, Selection{Requested: "kresd9", Effective: AllInstances, Fallback: true}, sel)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		key  string
		val  Value
		want string
	}{
		{"rss_bytes", Number(2097152), "2.0 MB"},
		{"hit_percent", Number(55.5), "55.50%"},
		{"rss", Number(512), "512 B"},
		{"memory_used", Number(1536), "1.5 KB"},
		{"cache_bytes", Number(3 * 1024 * 1024 * 1024), "3.0 GB"},
		{"total", Number(1234567), "1,234,567"},
		{"queries", Number(42), "42"},
		{"request_count", Number(1234.5), "1,234.5"},
		{"1000ms", Number(0.5), "0.5"},
		{"cpu_user", Number(1.23456), "1.235"},
		{"total_avg", Number(12345.6789), "12,345.679"},
		{"drop_count", Number(-0.0996), "-0.1"},
		{"backend", Text("lmdb"), "lmdb"},
		{"anything", Null(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.key, tt.val))
		})
	}
}

func TestCharts(t *testing.T) {
	agg := Aggregate(mustParse(t, twoInstances))
	charts := Charts(agg)
	require.Len(t, charts, 4)

	byID := make(map[string]Chart)
	for _, c := range charts {
		assert.Len(t, c.Data, len(c.Labels), c.ID)
		byID[c.ID] = c
	}

	assert.Equal(t, []float64{135, 0, 15, 2}, byID[ChartAnswerStatus].Data)
	assert.Equal(t, []float64{120, 30, 0, 3, 0, 0}, byID[ChartRequestType].Data)
	assert.Equal(t, []float64{70, 5, 75}, byID[ChartAnswerSource].Data)
	assert.Equal(t, []float64{90, 0, 0, 0, 0, 0, 0, 0, 1}, byID[ChartAnswerLatency].Data)
}

func TestChartsClampOtherAndDefaultMissing(t *testing.T) {
	snap := mustParse(t, `{"a": {"answer": {"total": 5, "cached": 10, "stale": 1}}}`)
	charts := Charts(&snap.Instances[0])

	assert.Equal(t, []float64{10, 1, 0}, charts[2].Data)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, charts[1].Data)
}

func TestBuildView(t *testing.T) {
	snap := mustParse(t, `{
		"k1": {"summary": {"b": 1, "a": null}, "answer": {"total": 3}, "cache": {"hit_percent": 55.5}},
		"k2": {"summary": {"b": 2}, "answer": {"total": 4}}
	}`)

	view, err := BuildView(snap, "All")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, view.Instances)
	assert.Equal(t, "全部统计 (汇总)", view.Title)
	require.Len(t, view.Sections, 3)
	assert.Equal(t, "summary", view.Sections[0].Name)
	assert.Equal(t, "answer", view.Sections[1].Name)
	assert.Equal(t, "cache", view.Sections[2].Name)

	// 空值字段不显示
	require.Len(t, view.Sections[0].Cards, 1)
	assert.Equal(t, Card{Key: "b", Label: "b", Value: "3"}, view.Sections[0].Cards[0])
	assert.Len(t, view.Charts, 4)

	view, err = BuildView(snap, "k2")
	require.NoError(t, err)
	assert.Equal(t, "全部统计 (k2)", view.Title)

	view, err = BuildView(snap, "gone")
	require.NoError(t, err)
	assert.True(t, view.Fallback)
	assert.Equal(t, AllInstances, view.Effective)
	assert.Equal(t, "全部统计 (汇总 - 回退)", view.Title)
}

func TestBuildViewLabelsAndSortedFields(t *testing.T) {
	snap := mustParse(t, `{"k": {"request": {"udp": 1, "tcp_total": 2, "doh": 3}}}`)

	view, err := BuildView(snap, "k")
	require.NoError(t, err)

	cards := view.Sections[0].Cards
	require.Len(t, cards, 3)
	assert.Equal(t, "doh", cards[0].Key)
	assert.Equal(t, "tcp total", cards[1].Label)
	assert.Equal(t, "udp", cards[2].Key)
}

func TestBuildViewEmpty(t *testing.T) {
	_, err := BuildView(&Snapshot{}, "All")
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}
