package ocr

import (
	"strings"

	"rag-chat-api/internal/application/ingestion"
)

// densityUnit 每 10000 像素面积期望的单词框数
const densityUnit = 10000.0

// Signals 由单词框计算三项质量信号：
// Confidence 为有效框置信度均值；Coverage 为框面积占比；Density 为单位面积内有效框数。
// Coverage 与 Density 均截断到 1。
func Signals(words []Word, width, height int) ingestion.OCRSignals {
	area := float64(width) * float64(height)
	if area <= 0 {
		return ingestion.OCRSignals{}
	}

	var (
		valid   int
		confSum float64
		boxArea float64
	)
	for _, w := range words {
		if w.Confidence < 0 || strings.TrimSpace(w.Text) == "" {
			continue
		}
		valid++
		confSum += w.Confidence
		if w.Width > 0 && w.Height > 0 {
			boxArea += float64(w.Width) * float64(w.Height)
		}
	}
	if valid == 0 {
		return ingestion.OCRSignals{}
	}

	return ingestion.OCRSignals{
		Confidence: confSum / float64(valid),
		Coverage:   min(boxArea/area, 1),
		Density:    min(float64(valid)/(area/densityUnit), 1),
	}
}

// JoinWords 服务未返回整段文本时按顺序拼接单词
func JoinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w.Confidence < 0 {
			continue
		}
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
