package ingestion

import (
	"strings"

	apperrors "rag-chat-api/pkg/errors"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunk 一个切片窗口，Offset 为其在原文中的起始字符位置
type Chunk struct {
	Index  int
	Offset int
	Text   string
}

// Chunker 按字符窗口切分文本，相邻窗口共享 overlap 个字符
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split 切分文本。窗口内容保持原样不做裁剪，
// 去掉每个非首窗口的前 overlap 个字符后依次拼接即可还原原文。
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrNoContentExtracted
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []Chunk{{Index: 0, Offset: 0, Text: text}}, nil
	}

	step := c.size - c.overlap
	out := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, Chunk{
			Index:  len(out),
			Offset: start,
			Text:   string(runes[start:end]),
		})
		if end >= len(runes) {
			break
		}
	}
	return out, nil
}

// Reassemble 去重叠拼接，Split 的逆操作
func Reassemble(chunks []Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		r := []rune(ch.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}
