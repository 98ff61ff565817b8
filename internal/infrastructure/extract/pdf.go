// Package extract PDF 与 DOCX 文本抽取
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"rag-chat-api/internal/application/ingestion"
)

var pageFilePattern = regexp.MustCompile(`Content_page_(\d+)`)

// TJ 数组中小于该值的位移（千分之一文字空间）视为词间空格
const tjSpaceOffset = -200

// PDF 借助 pdfcpu 导出每页内容流，再从中取出文本操作数
type PDF struct {
	tempDir string
}

var _ ingestion.TextExtractor = (*PDF)(nil)

func NewPDF(tempDir string) *PDF {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &PDF{tempDir: tempDir}
}

func (p *PDF) Extract(ctx context.Context, data []byte) (string, error) {
	work, err := os.MkdirTemp(p.tempDir, "pdf-extract-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	inFile := filepath.Join(work, "in.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	outDir := filepath.Join(work, "pages")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create page dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read page dir: %w", err)
	}

	type page struct {
		nr   int
		text string
	}
	pages := make([]page, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pageFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		nr, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", nr, err)
		}
		pages = append(pages, page{nr: nr, text: ContentStreamText(string(raw))})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].nr < pages[j].nr })

	parts := make([]string, 0, len(pages))
	for _, pg := range pages {
		if strings.TrimSpace(pg.text) != "" {
			parts = append(parts, pg.text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// ContentStreamText 从页面内容流中取出 Tj/TJ/'/" 的字符串操作数。
// 十六进制字符串仅处理带 BOM 的 UTF-16BE 与单字节编码，不解析字体的 CMap。
func ContentStreamText(stream string) string {
	var (
		out     strings.Builder
		line    strings.Builder
		inText  bool
		inArray bool
		pending []string
	)
	flushLine := func() {
		s := strings.TrimRight(line.String(), " ")
		if s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			pending = append(pending, s)
			i = next
			continue
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<':
			i += 2
			continue
		case c == '<':
			s, next := readHex(stream, i)
			pending = append(pending, s)
			i = next
			continue
		case c == '[':
			inArray = true
			i++
			continue
		case c == ']':
			inArray = false
			i++
			continue
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
			continue
		case isDelimiter(c) || isSpace(c):
			i++
			continue
		}

		start := i
		for i < len(stream) && !isSpace(stream[i]) && !isDelimiter(stream[i]) && stream[i] != '(' {
			i++
		}
		op := stream[start:i]
		switch op {
		case "BT":
			inText = true
			pending = pending[:0]
		case "ET":
			inText = false
			flushLine()
			pending = pending[:0]
		case "Tj", "TJ":
			if inText {
				for _, s := range pending {
					line.WriteString(s)
				}
			}
			pending = pending[:0]
		case "'", `"`:
			if inText {
				flushLine()
				for _, s := range pending {
					line.WriteString(s)
				}
			}
			pending = pending[:0]
		case "T*", "Td", "TD", "Tm":
			if inText {
				flushLine()
			}
			pending = pending[:0]
		default:
			// 数字等操作数不影响字符串缓冲；其余操作符清空
			if !isNumber(op) {
				pending = pending[:0]
				break
			}
			if inArray && len(pending) > 0 {
				if v, _ := strconv.ParseFloat(op, 64); v <= tjSpaceOffset && !strings.HasSuffix(pending[len(pending)-1], " ") {
					pending = append(pending, " ")
				}
			}
		}
	}
	flushLine()
	return strings.TrimRight(out.String(), "\n")
}

func readLiteral(s string, i int) (string, int) {
	var b strings.Builder
	depth := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		case '\\':
			i++
			if i >= len(s) {
				return b.String(), i
			}
			e := s[i]
			switch e {
			case 'n':
				b.WriteByte('\n')
				i++
			case 'r':
				b.WriteByte('\r')
				i++
			case 't':
				b.WriteByte('\t')
				i++
			case 'b', 'f':
				i++
			case '\r', '\n':
				i++
			default:
				if e >= '0' && e <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7' {
						v = v*8 + int(s[i]-'0')
						i++
						n++
					}
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
					i++
				}
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// readHex 解析 <...> 十六进制字符串，奇数位末尾补 0
func readHex(s string, i int) (string, int) {
	i++
	var (
		buf  []byte
		hi   byte
		half bool
	)
	for i < len(s) && s[i] != '>' {
		v, ok := hexValue(s[i])
		i++
		if !ok {
			continue
		}
		if half {
			buf = append(buf, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	if half {
		buf = append(buf, hi<<4)
	}
	if i < len(s) {
		i++
	}
	return decodeHexText(buf), i
}

func decodeHexText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for j := 0; j+1 < len(b); j += 2 {
			units = append(units, uint16(b[j])<<8|uint16(b[j+1]))
		}
		return string(utf16.Decode(units))
	}
	return string(b)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '[', ']', '<', '>', '{', '}', '/', ')':
		return true
	}
	return false
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
