// Package collage renders the avatar round image: a 2x2 grid of scaled
// pictures, each with a numbered badge in its top-left corner.
//
// A picture that cannot be read becomes a gray tile with a red badge. The
// composite is still produced, so one broken file never blocks a round; the
// player may see the gray tile in the correct slot.
package collage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	logx "quizbot/pkg/logx"
)

const (
	DefaultTileSize = 512
	Quality         = 90

	badgeSize   = 60
	badgeOffset = 10
	badgeScale  = 3
)

var (
	background = color.RGBA{0x11, 0x11, 0x11, 0xff}
	errorTile  = color.RGBA{0x66, 0x66, 0x66, 0xff}
	badgeFill  = color.White
	badgeText  = color.Black
	errorText  = color.RGBA{0xff, 0x00, 0x00, 0xff}
)

type Compositor struct {
	tile int
	log  logx.Logger
}

func New(tileSize int, log logx.Logger) *Compositor {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Compositor{tile: tileSize, log: log.Component("collage")}
}

func (c *Compositor) TileSize() int { return c.tile }

// Compose draws up to four images (row-major) and returns the JPEG bytes.
// An empty path leaves its tile blank without a badge.
func (c *Compositor) Compose(ctx context.Context, paths []string) ([]byte, error) {
	if len(paths) > 4 {
		return nil, fmt.Errorf("collage: %d tiles, max 4", len(paths))
	}
	r := c.tile
	canvas := image.NewRGBA(image.Rect(0, 0, 2*r, 2*r))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p == "" {
			continue
		}
		cell := image.Rect((i%2)*r, (i/2)*r, (i%2+1)*r, (i/2+1)*r)
		img, err := load(p)
		if err != nil {
			c.log.Warn("collage tile unreadable", logx.String("path", p), logx.Err(err))
			draw.Draw(canvas, cell, image.NewUniform(errorTile), image.Point{}, draw.Src)
			drawBadge(canvas, cell.Min, i+1, errorText)
			continue
		}
		draw.CatmullRom.Scale(canvas, fit(img.Bounds(), cell), img, img.Bounds(), draw.Over, nil)
		drawBadge(canvas, cell.Min, i+1, badgeText)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("collage: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return img, nil
}

// fit scales src by min(R/w, R/h) and centers it in cell.
func fit(src, cell image.Rectangle) image.Rectangle {
	w, h := float64(src.Dx()), float64(src.Dy())
	scale := min(float64(cell.Dx())/w, float64(cell.Dy())/h)
	dw, dh := max(1, int(w*scale)), max(1, int(h*scale))
	x := cell.Min.X + (cell.Dx()-dw)/2
	y := cell.Min.Y + (cell.Dy()-dh)/2
	return image.Rect(x, y, x+dw, y+dh)
}

func drawBadge(dst draw.Image, origin image.Point, n int, ink color.Color) {
	box := image.Rect(0, 0, badgeSize, badgeSize).Add(origin).Add(image.Pt(badgeOffset, badgeOffset))
	draw.Draw(dst, box, image.NewUniform(badgeFill), image.Point{}, draw.Src)

	// Render the digit small, then upscale it into the badge.
	face := basicfont.Face7x13
	label := strconv.Itoa(n)
	gw := font.MeasureString(face, label).Ceil()
	gh := face.Height
	glyph := image.NewRGBA(image.Rect(0, 0, gw, gh))
	d := font.Drawer{Dst: glyph, Src: image.NewUniform(ink), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(label)

	sw, sh := gw*badgeScale, gh*badgeScale
	x := box.Min.X + (badgeSize-sw)/2
	y := box.Min.Y + (badgeSize-sh)/2
	draw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+sw, y+sh), glyph, glyph.Bounds(), draw.Over, nil)
}
