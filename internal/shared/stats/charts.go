package stats

import "math"

// 图表标识
const (
	ChartAnswerStatus  = "answer_status"
	ChartRequestType   = "request_type"
	ChartAnswerSource  = "answer_source"
	ChartAnswerLatency = "answer_latency"
)

// Chart 单个图表的数据
type Chart struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// 延迟分桶，顺序与标签一一对应
var latencyBuckets = []string{"1ms", "10ms", "50ms", "100ms", "250ms", "500ms", "1000ms", "1500ms", "slow"}

// Charts 从 answer 和 request 分组生成四个固定图表，缺失字段按0计
func Charts(inst *Instance) []Chart {
	answer := inst.Section("answer")
	request := inst.Section("request")

	cached := answer.NumberOf("cached")
	stale := answer.NumberOf("stale")
	other := math.Max(0, answer.NumberOf("total")-cached-stale)

	return []Chart{
		{
			ID:     ChartAnswerStatus,
			Title:  "应答状态",
			Labels: []string{"NoError", "NoData", "NXDomain", "ServFail"},
			Data:   numbers(answer, "noerror", "nodata", "nxdomain", "servfail"),
		},
		{
			ID:     ChartRequestType,
			Title:  "请求类型",
			Labels: []string{"UDP", "TCP", "DoT", "DoH", "Internal", "XDP"},
			Data:   numbers(request, "udp", "tcp", "dot", "doh", "internal", "xdp"),
		},
		{
			ID:     ChartAnswerSource,
			Title:  "应答来源",
			Labels: []string{"Cached", "Stale", "Other"},
			Data:   []float64{cached, stale, other},
		},
		{
			ID:     ChartAnswerLatency,
			Title:  "应答延迟分布",
			Labels: []string{"<1ms", "<10ms", "<50ms", "<100ms", "<250ms", "<500ms", "<1s", "<1.5s", "Slow"},
			Data:   numbers(answer, latencyBuckets...),
		},
	}
}

func numbers(section *Section, keys ...string) []float64 {
	out := make([]float64, len(keys))
	for i, key := range keys {
		out[i] = section.NumberOf(key)
	}
	return out
}
