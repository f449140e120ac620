package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/vp8"
	"golang.org/x/image/webp"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
	MimeVP8  = "video/VP8"
)

// FrameDecoder turns client frame payloads into rasters. It is stateless and
// safe for concurrent use.
type FrameDecoder struct {
	maxBytes int
}

func NewFrameDecoder(maxBytes int) *FrameDecoder {
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &FrameDecoder{maxBytes: maxBytes}
}

// DecodeDataURL accepts "data:image/jpeg;base64,..." or bare base64. Bare
// payloads are sniffed.
func (d *FrameDecoder) DecodeDataURL(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty frame data")
	}

	mimeType := ""
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data url")
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("data url is not base64 encoded")
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		payload = body
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > d.maxBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", d.maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	return d.Decode(data, mimeType)
}

func (d *FrameDecoder) Decode(data []byte, mimeType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame data")
	}
	if len(data) > d.maxBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", d.maxBytes)
	}
	if mimeType == "" {
		mimeType = sniffMime(data)
	}

	var (
		img image.Image
		err error
	)
	switch mimeType {
	case MimeJPEG, "image/jpg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case MimePNG:
		img, err = png.Decode(bytes.NewReader(data))
	case MimeWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	case MimeVP8:
		img, err = decodeVP8(data)
	default:
		return nil, fmt.Errorf("unsupported frame format: %q", mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mimeType, err)
	}

	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", b.Dx(), b.Dy())
	}
	return img, nil
}

func decodeVP8(data []byte) (image.Image, error) {
	decoder := vp8.NewDecoder()
	decoder.Init(bytes.NewReader(data), len(data))

	fh, err := decoder.DecodeFrameHeader()
	if err != nil {
		return nil, fmt.Errorf("frame header: %w", err)
	}
	if !fh.KeyFrame {
		return nil, fmt.Errorf("not a key frame")
	}
	if fh.Width == 0 || fh.Height == 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", fh.Width, fh.Height)
	}

	return decoder.DecodeFrame()
}

func sniffMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return MimeJPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return MimePNG
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return MimeWebP
	case len(data) >= 10 && data[0]&0x01 == 0 && data[3] == 0x9d && data[4] == 0x01 && data[5] == 0x2a:
		return MimeVP8
	}
	return ""
}
