package ingestion

const (
	DefaultMinCoverage   = 0.1
	DefaultMinDensity    = 0.05
	DefaultMinConfidence = 50.0
)

// OCRSignals OCR 质量信号
type OCRSignals struct {
	// Coverage 文本框面积占图片面积比例，0-1
	Coverage float64
	// Density 单位面积内的文本框数量
	Density float64
	// Confidence 平均置信度，0-100
	Confidence float64
}

// EscalationPolicy 判断 OCR 结果是否需要视觉模型补充，纯函数
type EscalationPolicy struct {
	MinCoverage   float64
	MinDensity    float64
	MinConfidence float64
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		MinCoverage:   DefaultMinCoverage,
		MinDensity:    DefaultMinDensity,
		MinConfidence: DefaultMinConfidence,
	}
}

// NeedsVision 任一信号低于阈值即升级
func (p EscalationPolicy) NeedsVision(s OCRSignals) bool {
	return s.Coverage < p.MinCoverage ||
		s.Density < p.MinDensity ||
		s.Confidence < p.MinConfidence
}
