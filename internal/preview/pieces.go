package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/park285/dama-table/internal/domain"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Stones are drawn from small SVG templates so they scale with the square size.
const manSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<circle cx="50" cy="54" r="38" fill="#000000" fill-opacity="0.25"/>
<circle cx="50" cy="50" r="38" fill="%s" stroke="%s" stroke-width="4"/>
<circle cx="50" cy="50" r="26" fill="none" stroke="%s" stroke-width="3"/>
</svg>`

const kingSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<circle cx="50" cy="54" r="38" fill="#000000" fill-opacity="0.25"/>
<circle cx="50" cy="50" r="38" fill="%s" stroke="%s" stroke-width="4"/>
<path d="M30 60 L30 40 L40 50 L50 34 L60 50 L70 40 L70 60 Z" fill="#e8b923" stroke="%s" stroke-width="2"/>
</svg>`

type stoneStyle struct{ fill, stroke, ring string }

var stoneStyles = map[int]stoneStyle{
	domain.SideBlack: {fill: "#2b2b2b", stroke: "#0d0d0d", ring: "#555555"},
	domain.SideWhite: {fill: "#f4f1ea", stroke: "#9c968a", ring: "#c9c3b6"},
}

type stoneKey struct {
	side int
	king bool
	size int
}

var (
	stoneCache   = map[stoneKey]image.Image{}
	stoneCacheMu sync.RWMutex
)

func renderStone(side int, king bool, size int) (image.Image, error) {
	key := stoneKey{side: side, king: king, size: size}

	stoneCacheMu.RLock()
	if img, ok := stoneCache[key]; ok {
		stoneCacheMu.RUnlock()
		return img, nil
	}
	stoneCacheMu.RUnlock()

	style, ok := stoneStyles[side]
	if !ok {
		return nil, fmt.Errorf("unknown side %d", side)
	}
	tpl := manSVG
	if king {
		tpl = kingSVG
	}
	src := fmt.Sprintf(tpl, style.fill, style.stroke, style.ring)

	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse stone svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	stoneCacheMu.Lock()
	stoneCache[key] = img
	stoneCacheMu.Unlock()
	return img, nil
}

// isKing reports whether a piece record carries a promoted flag.
func isKing(raw json.RawMessage) bool {
	var p struct {
		King   *bool `json:"king"`
		IsKing *bool `json:"isKing"`
		Dama   *bool `json:"dama"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	for _, f := range []*bool{p.King, p.IsKing, p.Dama} {
		if f != nil && *f {
			return true
		}
	}
	return false
}
