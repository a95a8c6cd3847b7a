package softpaint

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// geometry is an object's resolved on-canvas placement in pixels.
type geometry struct {
	cx, cy       float64
	halfW, halfH float64
	rotation     float64 // radians
}

// rotate maps a point from the object's local space to canvas space.
func (g geometry) rotate(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(g.rotation)
	return g.cx + x*cos - y*sin, g.cy + x*sin + y*cos
}

type canvas struct {
	dst  *image.RGBA
	w, h float64
}

// kappa is the cubic Bézier circle constant.
const kappa = 0.5523

func (c *canvas) newRasterizer() *vector.Rasterizer {
	return vector.NewRasterizer(c.dst.Bounds().Dx(), c.dst.Bounds().Dy())
}

func (c *canvas) fill(ras *vector.Rasterizer, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	ras.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{})
}

// fillRoundRect fills a possibly rotated rectangle with rounded corners. The
// corner arcs are quadratic approximations, close enough at frame
// resolutions.
func (c *canvas) fillRoundRect(g geometry, radius float64, col color.NRGBA) {
	if g.halfW <= 0 || g.halfH <= 0 {
		return
	}
	r := radius
	if max := math.Min(g.halfW, g.halfH); r > max {
		r = max
	}
	if r < 0 {
		r = 0
	}

	ras := c.newRasterizer()
	moveTo(ras, g, -g.halfW+r, -g.halfH)
	lineTo(ras, g, g.halfW-r, -g.halfH)
	quadTo(ras, g, g.halfW, -g.halfH, g.halfW, -g.halfH+r)
	lineTo(ras, g, g.halfW, g.halfH-r)
	quadTo(ras, g, g.halfW, g.halfH, g.halfW-r, g.halfH)
	lineTo(ras, g, -g.halfW+r, g.halfH)
	quadTo(ras, g, -g.halfW, g.halfH, -g.halfW, g.halfH-r)
	lineTo(ras, g, -g.halfW, -g.halfH+r)
	quadTo(ras, g, -g.halfW, -g.halfH, -g.halfW+r, -g.halfH)
	ras.ClosePath()
	c.fill(ras, col)
}

// fillEllipse fills a possibly rotated ellipse built from four cubic arcs.
func (c *canvas) fillEllipse(g geometry, col color.NRGBA) {
	if g.halfW <= 0 || g.halfH <= 0 {
		return
	}
	w, h := g.halfW, g.halfH
	kw, kh := w*kappa, h*kappa

	ras := c.newRasterizer()
	moveTo(ras, g, 0, -h)
	cubeTo(ras, g, kw, -h, w, -kh, w, 0)
	cubeTo(ras, g, w, kh, kw, h, 0, h)
	cubeTo(ras, g, -kw, h, -w, kh, -w, 0)
	cubeTo(ras, g, -w, -kh, -kw, -h, 0, -h)
	ras.ClosePath()
	c.fill(ras, col)
}

// strokeLine fills the quad spanned by a line segment and its width.
func (c *canvas) strokeLine(x1, y1, x2, y2, width float64, col color.NRGBA) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	// unit normal
	nx, ny := -dy/length*width/2, dx/length*width/2

	ras := c.newRasterizer()
	ras.MoveTo(float32(x1+nx), float32(y1+ny))
	ras.LineTo(float32(x2+nx), float32(y2+ny))
	ras.LineTo(float32(x2-nx), float32(y2-ny))
	ras.LineTo(float32(x1-nx), float32(y1-ny))
	ras.ClosePath()
	c.fill(ras, col)
}

func moveTo(ras *vector.Rasterizer, g geometry, x, y float64) {
	px, py := g.rotate(x, y)
	ras.MoveTo(float32(px), float32(py))
}

func lineTo(ras *vector.Rasterizer, g geometry, x, y float64) {
	px, py := g.rotate(x, y)
	ras.LineTo(float32(px), float32(py))
}

func quadTo(ras *vector.Rasterizer, g geometry, cx, cy, x, y float64) {
	pcx, pcy := g.rotate(cx, cy)
	px, py := g.rotate(x, y)
	ras.QuadTo(float32(pcx), float32(pcy), float32(px), float32(py))
}

func cubeTo(ras *vector.Rasterizer, g geometry, c1x, c1y, c2x, c2y, x, y float64) {
	p1x, p1y := g.rotate(c1x, c1y)
	p2x, p2y := g.rotate(c2x, c2y)
	px, py := g.rotate(x, y)
	ras.CubeTo(float32(p1x), float32(p1y), float32(p2x), float32(p2y), float32(px), float32(py))
}
