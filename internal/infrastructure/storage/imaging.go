package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
)

// Size is a target width and height in pixels.
type Size struct {
	W, H int
}

var (
	UserPhotoSize = Size{W: 500, H: 500}
	TourImageSize = Size{W: 2000, H: 1333}
)

const (
	jpegQuality   = 90
	maxPixels     = 50_000_000
	MaxTourImages = 3
	contentJPEG   = "image/jpeg"
)

// ErrNotAnImage is returned for uploads that do not decode as an image.
var ErrNotAnImage = domain.ErrNotAnImage

// Processor implements ports.ImageProcessor on top of an ImageStore.
type Processor struct {
	store ports.ImageStore
	now   func() time.Time
}

func NewProcessor(store ports.ImageStore) *Processor {
	return &Processor{store: store, now: time.Now}
}

// UserPhoto stores src as user-<id>-<ms>.jpeg.
func (p *Processor) UserPhoto(ctx context.Context, userID string, src io.Reader) (string, error) {
	name := fmt.Sprintf("user-%s-%d.jpeg", userID, p.now().UnixMilli())
	if err := p.process(ctx, name, src, UserPhotoSize); err != nil {
		return "", err
	}
	return name, nil
}

// TourImages stores the cover and up to MaxTourImages gallery images
// concurrently and returns once all of them are written. A nil cover is
// skipped.
func (p *Processor) TourImages(ctx context.Context, tourID string, cover io.Reader, images []io.Reader) (string, []string, error) {
	if len(images) > MaxTourImages {
		return "", nil, domain.NewError(http.StatusBadRequest, fmt.Sprintf("A tour can have at most %d images.", MaxTourImages))
	}
	stamp := p.now().UnixMilli()
	g, gctx := errgroup.WithContext(ctx)

	var coverName string
	if cover != nil {
		coverName = fmt.Sprintf("tour-%s-%d-cover.jpeg", tourID, stamp)
		g.Go(func() error { return p.process(gctx, coverName, cover, TourImageSize) })
	}

	names := make([]string, len(images))
	for i, src := range images {
		names[i] = fmt.Sprintf("tour-%s-%d-%d.jpeg", tourID, stamp, i+1)
		g.Go(func() error { return p.process(gctx, names[i], src, TourImageSize) })
	}

	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return coverName, names, nil
}

func (p *Processor) process(ctx context.Context, name string, src io.Reader, size Size) error {
	img, err := decode(src)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, coverFit(img, size), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return p.store.Save(ctx, name, contentJPEG, &buf)
}

// decode rejects anything that is not a supported image, checking the
// dimensions before the pixels are decoded.
func decode(src io.Reader) (image.Image, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, domain.NewError(http.StatusBadRequest, "Image dimensions are too large.")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}
	return img, nil
}

// coverFit scales src to exactly size, cropping the centre of whichever
// dimension overflows the target aspect ratio.
func coverFit(src image.Image, size Size) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	crop := b
	if sw*size.H > sh*size.W {
		cw := sh * size.W / size.H
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else {
		ch := sw * size.H / size.W
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.W, size.H))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
