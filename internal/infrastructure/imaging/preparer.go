// Package imaging 图片解码与缩放
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"rag-chat-api/internal/application/ingestion"
)

const jpegQuality = 85

// Preparer 将最长边超过 maxEdge 的图片等比缩小，未超出时原样返回
type Preparer struct{}

var _ ingestion.ImagePreparer = Preparer{}

func NewPreparer() Preparer {
	return Preparer{}
}

func (Preparer) Prepare(data []byte, mime string, maxEdge int) (*ingestion.PreparedImage, error) {
	src, format, err := decode(data, mime)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has empty bounds")
	}

	nw, nh := FitWithin(w, h, maxEdge)
	if nw == w && nh == h {
		return &ingestion.PreparedImage{Data: data, MIME: mime, Width: w, Height: h}, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	outMIME := "image/jpeg"
	if format == "png" || format == "gif" {
		outMIME = "image/png"
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}

	return &ingestion.PreparedImage{
		Data:    buf.Bytes(),
		MIME:    outMIME,
		Width:   nw,
		Height:  nh,
		Resized: true,
	}, nil
}

// FitWithin 等比缩放使最长边不超过 maxEdge；maxEdge<=0 表示不限制
func FitWithin(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		return maxEdge, max(nh, 1)
	}
	nw := w * maxEdge / h
	return max(nw, 1), maxEdge
}

func decode(data []byte, mime string) (image.Image, string, error) {
	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch mime {
	case "image/png":
		img, err = png.Decode(r)
		return img, "png", wrap(err)
	case "image/jpeg":
		img, err = jpeg.Decode(r)
		return img, "jpeg", wrap(err)
	case "image/gif":
		img, err = gif.Decode(r)
		return img, "gif", wrap(err)
	case "image/webp":
		img, err = webp.Decode(r)
		return img, "webp", wrap(err)
	default:
		return nil, "", fmt.Errorf("unsupported image type %q", mime)
	}
}

func wrap(err error) error {
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}
