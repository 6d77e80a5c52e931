package dailytoken

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/webp"
)

// Prefix starts every daily token.
const Prefix = "ATTEND_"

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 300

// maxEdge bounds the capture size handed to the QR reader.
const maxEdge = 1600

var (
	// ErrUnreadable is returned when no QR code can be read from a capture.
	ErrUnreadable = errors.New("qr code unreadable")
	// ErrInvalid is returned when a decoded token is not today's token.
	ErrInvalid = errors.New("qr code invalid")
)

// For returns the token for the calendar date of t.
func For(t time.Time) string {
	return Prefix + t.Format("2006-01-02")
}

// Generator derives the daily token from a clock and converts it to and from QR images.
type Generator struct {
	Now  func() time.Time
	Size int
}

// New creates a generator using the wall clock in loc.
func New(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.Local
	}
	return &Generator{
		Now:  func() time.Time { return time.Now().In(loc) },
		Size: DefaultSize,
	}
}

// Current returns today's token.
func (g *Generator) Current() string {
	return For(g.Now())
}

// Encode renders token as a PNG QR code.
func (g *Generator) Encode(token string) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Decode extracts the text of the QR code in an uploaded capture.
func (g *Generator) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	b := img.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	if text, err := readQR(img); err == nil {
		return text, nil
	}
	// Low contrast phone captures sometimes only read after flattening to grey.
	text, err := readQR(imaging.Grayscale(img))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return text, nil
}

// Validate accepts decoded only if it equals the token for the current date.
func (g *Generator) Validate(decoded string) error {
	return ValidateAt(decoded, g.Now())
}

// ValidateAt accepts decoded only if it equals the token for the date of at.
func ValidateAt(decoded string, at time.Time) error {
	if decoded != For(at) {
		return ErrInvalid
	}
	return nil
}

// Verify decodes a capture and validates the token in it.
func (g *Generator) Verify(data []byte) error {
	text, err := g.Decode(data)
	if err != nil {
		return err
	}
	return g.Validate(text)
}

func readQR(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return res.GetText(), nil
}
