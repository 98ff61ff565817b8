package ingestion

import (
	"regexp"
	"strings"
)

var (
	reManyNewlines = regexp.MustCompile(`\n{3,}`)
	reManySpaces   = regexp.MustCompile(` +`)
)

// CleanText 规整抽取文本：压缩连续空行与空格，去掉每行首尾空白
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reManyNewlines.ReplaceAllString(text, "\n\n")
	text = reManySpaces.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// MergeImageText 视觉描述在前，OCR 文本在后
func MergeImageText(vision, ocr string) string {
	vision = strings.TrimSpace(vision)
	if vision == "" {
		return strings.TrimSpace(ocr)
	}
	return strings.TrimSpace(vision + "\n\n" + ocr)
}
