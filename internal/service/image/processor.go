package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	defaultQuality = 90
	// DefaultMaxPixels тот же порог, что у PIL (Image.MAX_IMAGE_PIXELS * 2)
	DefaultMaxPixels int64 = 178956970
)

// ErrUnsupportedType: расширение или содержимое файла не PNG/JPEG.
var ErrUnsupportedType = errors.New("unsupported image type: upload a png, jpg or jpeg file")

// ErrImageTooLarge: размеры из заголовка превышают лимит пикселей. Такой файл не декодируется,
// иначе декодер выделит буфер под все пиксели до чтения данных.
var ErrImageTooLarge = errors.New("image is too large")

// AllowedExtensions расширения, которые принимает загрузчик страницы.
var AllowedExtensions = []string{".png", ".jpg", ".jpeg"}

// DecodedImage загруженная картинка. Data: исходные байты файла без изменений.
type DecodedImage struct {
	Name     string
	Data     []byte
	Format   string // png|jpeg
	MimeType string
	Width    int
	Height   int
}

type Processor struct {
	maxWidth  int
	maxPixels int64
	quality   int
}

// NewProcessor создаёт обработчик. maxWidth <= 0: картинки для модели не уменьшаются.
// maxPixels <= 0: используется DefaultMaxPixels.
func NewProcessor(maxWidth int, maxPixels int64) *Processor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Processor{maxWidth: max(0, maxWidth), maxPixels: maxPixels, quality: defaultQuality}
}

// Decode проверяет расширение и декодирует картинку. Ошибки декодера возвращаются как есть.
func (p *Processor) Decode(name string, data []byte) (DecodedImage, error) {
	if !AllowedExtension(name) {
		return DecodedImage{}, fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(name))
	}
	if len(data) == 0 {
		return DecodedImage{}, errors.New("empty file")
	}

	// Сначала только заголовок: размеры проверяются до выделения памяти под пиксели
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return DecodedImage{}, err
	}
	if format != "png" && format != "jpeg" {
		return DecodedImage{}, fmt.Errorf("%w: content is %s", ErrUnsupportedType, format)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.maxPixels {
		return DecodedImage{}, fmt.Errorf("%w: %dx%d is %d pixels, limit %d", ErrImageTooLarge, cfg.Width, cfg.Height, pixels, p.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return DecodedImage{}, err
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return DecodedImage{}, fmt.Errorf("invalid image size: %dx%d", b.Dx(), b.Dy())
	}

	return DecodedImage{
		Name:     filepath.Base(name),
		Data:     data,
		Format:   format,
		MimeType: "image/" + format,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// ForModel возвращает MIME и байты для отправки в модель. Если картинка шире maxWidth,
// она уменьшается с сохранением пропорций и перекодируется в исходный формат.
func (p *Processor) ForModel(img DecodedImage) (string, []byte, error) {
	if p.maxWidth == 0 || img.Width <= p.maxWidth {
		return img.MimeType, img.Data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", nil, err
	}
	width := p.maxWidth
	height := max(1, img.Height*width/img.Width)
	resized := resize(src, width, height)

	var buf bytes.Buffer
	switch img.Format {
	case "png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality})
	}
	if err != nil {
		return "", nil, err
	}
	return img.MimeType, buf.Bytes(), nil
}

// AllowedExtension сообщает, принимается ли файл с таким именем.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func resize(src image.Image, width int, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
