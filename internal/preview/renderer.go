// Package preview draws a PNG picture of a table snapshot.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/park285/dama-table/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Options carries the header lines printed above the board.
type Options struct {
	Title  string
	Turn   string
	Status string
}

type Renderer struct {
	squareSize int
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize < 16 {
		squareSize = 56
	}
	return &Renderer{squareSize: squareSize}
}

var (
	backgroundColor = color.RGBA{28, 31, 46, 255}
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	headerText      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	subText         = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	coordinateText  = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

const (
	sideMargin   = 28
	headerHeight = 58
	bottomMargin = 28
)

func (r *Renderer) RenderPNG(ctx context.Context, snap domain.Snapshot, opts Options) ([]byte, error) {
	sq := r.squareSize
	boardPx := sq * domain.BoardSize
	width := boardPx + sideMargin*2
	height := boardPx + headerHeight + bottomMargin
	origin := image.Point{X: sideMargin, Y: headerHeight}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawHeader(img, opts, width)
	drawSquares(img, sq, origin)
	if err := drawStones(img, snap, sq, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, sq, origin)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(dst imagedraw.Image, squareSize int, origin image.Point) {
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

// drawStones places every grid cell that references a known piece record.
func drawStones(dst imagedraw.Image, snap domain.Snapshot, squareSize int, origin image.Point) error {
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			idx := snap.PositionArray.PieceIndex(row, col)
			if idx < 0 || idx >= len(snap.PieceList) {
				continue
			}
			piece := snap.PieceList[idx]
			side, ok := domain.PieceSide(piece)
			if !ok {
				continue
			}
			stone, err := renderStone(side, isKing(piece), squareSize)
			if err != nil {
				return err
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), stone, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawHeader(img *image.RGBA, opts Options, width int) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	drawer.Src = image.NewUniform(headerText)
	drawCenteredText(drawer, fold(opts.Title), width/2, 10+ascent)

	line := strings.TrimSpace(opts.Turn)
	if s := strings.TrimSpace(opts.Status); s != "" {
		if line != "" {
			line += "  |  "
		}
		line += s
	}
	drawer.Src = image.NewUniform(subText)
	drawCenteredText(drawer, fold(line), width/2, 32+ascent)
}

func drawCoordinates(img *image.RGBA, squareSize int, origin image.Point) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateText)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + domain.BoardSize*squareSize

	for i := 0; i < domain.BoardSize; i++ {
		center := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(drawer, fmt.Sprint(domain.BoardSize-i), origin.X-sideMargin/2, center+ascent/2)

		fileCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('a'+i)), fileCenter, boardEnd+ascent+4)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	w := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-w/2, baseline)
	drawer.DrawString(text)
}

// The bitmap face only covers Latin-1.
var turkishFold = strings.NewReplacer("ı", "i", "İ", "I", "ş", "s", "Ş", "S", "ğ", "g", "Ğ", "G")

func fold(s string) string { return turkishFold.Replace(strings.TrimSpace(s)) }
