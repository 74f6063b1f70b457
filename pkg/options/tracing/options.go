// Package tracing 提供 OpenTelemetry 链路追踪配置。
package tracing

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 导出器类型。
const (
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterStdout   = "stdout"
	ExporterNone     = "none"
)

// Options 链路追踪配置。Exporter 为 none 时不上报。
type Options struct {
	Exporter       string            `json:"exporter" mapstructure:"exporter"`
	Endpoint       string            `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool              `json:"insecure" mapstructure:"insecure"`
	Headers        map[string]string `json:"-" mapstructure:"headers"`
	SampleRatio    float64           `json:"sample-ratio" mapstructure:"sample-ratio"`
	Environment    string            `json:"environment" mapstructure:"environment"`
	BatchTimeout   time.Duration     `json:"batch-timeout" mapstructure:"batch-timeout"`
	ExportTimeout  time.Duration     `json:"export-timeout" mapstructure:"export-timeout"`
	ServiceName    string            `json:"-" mapstructure:"-"`
	ServiceVersion string            `json:"-" mapstructure:"-"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Exporter:      ExporterNone,
		Endpoint:      "localhost:4317",
		Insecure:      true,
		SampleRatio:   1.0,
		BatchTimeout:  5 * time.Second,
		ExportTimeout: 30 * time.Second,
	}
}

// Enabled 是否上报链路数据。
func (o *Options) Enabled() bool {
	return o != nil && o.Exporter != "" && o.Exporter != ExporterNone
}

// AddFlags 注册 tracing.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.StringVar(&o.Exporter, p+"exporter", o.Exporter, "Trace exporter (otlp-grpc|otlp-http|stdout|none).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint (host:port).")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS for the OTLP exporter.")
	fs.StringToStringVar(&o.Headers, p+"headers", o.Headers, "Extra headers sent to the OTLP collector.")
	fs.Float64Var(&o.SampleRatio, p+"sample-ratio", o.SampleRatio, "Fraction of root traces sampled (0..1).")
	fs.StringVar(&o.Environment, p+"environment", o.Environment, "deployment.environment resource attribute.")
	fs.DurationVar(&o.BatchTimeout, p+"batch-timeout", o.BatchTimeout, "Maximum delay before a span batch is exported.")
	fs.DurationVar(&o.ExportTimeout, p+"export-timeout", o.ExportTimeout, "Timeout of a single export call.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for exporter %s", o.Exporter))
		}
	case ExporterStdout, ExporterNone, "":
	default:
		errs = append(errs, fmt.Errorf("unsupported tracing.exporter %q", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample-ratio must be within [0, 1]"))
	}
	return errs
}
