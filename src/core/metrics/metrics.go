package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// PipelineRequestsTotal 按模式(extract/ask)和结果统计流水线调用次数
	PipelineRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealchat",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Total number of meal pipeline runs, labeled by mode and result.",
	}, []string{"mode", "result"})

	// ModelInvocationSeconds 模型调用耗时
	ModelInvocationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mealchat",
		Subsystem: "model",
		Name:      "invocation_seconds",
		Help:      "Latency of a single multimodal model invocation.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"provider", "result"})

	// ModelTokensTotal 模型令牌用量
	ModelTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealchat",
		Subsystem: "model",
		Name:      "tokens_total",
		Help:      "Tokens reported by the model service, labeled by kind (prompt/completion).",
	}, []string{"kind"})

	// ImagesProcessedTotal 图片处理结果
	ImagesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealchat",
		Subsystem: "image",
		Name:      "processed_total",
		Help:      "Images loaded and encoded, labeled by result.",
	}, []string{"result"})

	// UploadsExpiredTotal 清理的过期上传数量
	UploadsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mealchat",
		Subsystem: "upload",
		Name:      "expired_total",
		Help:      "Uploaded images removed after their TTL elapsed.",
	})
)

// Register 注册到默认 Prometheus registry，可重复调用
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			PipelineRequestsTotal,
			ModelInvocationSeconds,
			ModelTokensTotal,
			ImagesProcessedTotal,
			UploadsExpiredTotal,
		)
	})
}

// ObserveInvocation 记录一次模型调用
func ObserveInvocation(provider string, start time.Time, err error) {
	ModelInvocationSeconds.WithLabelValues(provider, Result(err)).Observe(time.Since(start).Seconds())
}

// Result 把错误转换为 result 标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
