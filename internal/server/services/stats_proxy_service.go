package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"knotstats/internal/server/metrics"
	"knotstats/internal/shared/config"
	"knotstats/internal/shared/logging"
	"knotstats/internal/shared/stats"

	"github.com/tidwall/gjson"
)

var proxyLog = logging.Logger("stats-proxy")

// 上游指标JSON的最大长度
const maxStatsBody = 16 << 20

// UpstreamErrorKind 上游错误类型
type UpstreamErrorKind string

const (
	KindUnreachable UpstreamErrorKind = "unreachable"
	KindTimeout     UpstreamErrorKind = "timeout"
	KindBadStatus   UpstreamErrorKind = "bad_status"
	KindBadJSON     UpstreamErrorKind = "bad_json"
	KindWrongShape  UpstreamErrorKind = "wrong_shape"
	KindRequest     UpstreamErrorKind = "request"
)

// UpstreamError 获取解析器指标失败
type UpstreamError struct {
	Kind UpstreamErrorKind
	// Status 上游返回的HTTP状态码，仅 bad_status 时有值
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus 返回给浏览器的状态码
func (e *UpstreamError) HTTPStatus() int {
	switch e.Kind {
	case KindUnreachable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindBadStatus:
		if e.Status >= 500 {
			return e.Status
		}
	}
	return http.StatusInternalServerError
}

// StatsProxyService 解析器指标代理服务
type StatsProxyService struct {
	statsURL   string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewStatsProxyService 创建指标代理服务
func NewStatsProxyService(cfg *config.ServerConfig, m *metrics.Metrics) *StatsProxyService {
	return &StatsProxyService{
		statsURL: cfg.Resolver.StatsURL,
		httpClient: &http.Client{
			Timeout: cfg.Resolver.Timeout,
		},
		metrics: m,
	}
}

// StatsURL 返回上游指标地址
func (s *StatsProxyService) StatsURL() string {
	return s.statsURL
}

// Fetch 获取一次指标快照的原始JSON
// 返回的字节保证是JSON对象；失败时返回 *UpstreamError
func (s *StatsProxyService) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	body, err := s.fetch(ctx)

	result := metrics.ResultOK
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		result = string(upErr.Kind)
		proxyLog.Warnw("获取解析器指标失败", "url", s.statsURL, "kind", upErr.Kind, "error", upErr.Error())
	}
	s.metrics.ObserveUpstream(result, time.Since(start))

	return body, err
}

func (s *StatsProxyService) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.statsURL, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: KindRequest, Message: "创建指标请求失败", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Kind:    KindBadStatus,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Knot Resolver 返回HTTP错误 %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBody))
	if err != nil {
		return nil, s.classify(err)
	}

	if !gjson.ValidBytes(body) {
		return nil, &UpstreamError{Kind: KindBadJSON, Message: "无法解析 Knot Resolver 返回的JSON数据"}
	}
	if !gjson.ParseBytes(body).IsObject() {
		return nil, &UpstreamError{Kind: KindWrongShape, Message: "Knot Resolver 返回的数据格式不正确"}
	}

	return body, nil
}

// classify 按传输层错误类型归类
func (s *StatsProxyService) classify(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{Kind: KindTimeout, Message: "从 Knot Resolver 获取指标超时", Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.Is(err, syscall.ECONNREFUSED) || errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &UpstreamError{
			Kind:    KindUnreachable,
			Message: fmt.Sprintf("无法连接 Knot Resolver，请确认 webmgmt 正在 %s 上运行", s.statsURL),
			Err:     err,
		}
	}

	return &UpstreamError{Kind: KindRequest, Message: "获取指标失败", Err: err}
}

// View 获取快照并生成指定实例的展示数据
func (s *StatsProxyService) View(ctx context.Context, instance string) (*stats.View, error) {
	body, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := stats.ParseSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("解析指标快照失败: %w", err)
	}

	view, err := stats.BuildView(snap, instance)
	if err != nil {
		return nil, fmt.Errorf("生成统计视图失败: %w", err)
	}
	return view, nil
}
