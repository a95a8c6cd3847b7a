// Package softpaint is the reference software renderer: a pure-Go rasterizer
// for the effective-object lists the transition controller produces. It
// exists so the export pipeline works end to end without any retained-scene
// or GPU backend; anything satisfying the export.Renderer contract can take
// its place.
package softpaint

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/stepmotion/internal/interp"
	"github.com/ivlev/stepmotion/internal/state"
	"github.com/ivlev/stepmotion/internal/system"
	"github.com/ivlev/stepmotion/internal/transform"
)

// Renderer rasterizes onto pooled RGBA surfaces. Zero value is ready to use.
type Renderer struct {
	// Warn receives definition diagnostics hit during drawing (connectors to
	// missing objects and the like). Nil means skip silently.
	Warn func(objectID, msg string)
}

// CreateSurface hands out a pooled surface; the exporter returns it to the
// pool once the encode call for that frame is done.
func (r *Renderer) CreateSurface(width, height int) *image.RGBA {
	return system.GetFrame(image.Rect(0, 0, width, height))
}

// Render draws the object list, already in draw order, onto the surface.
func (r *Renderer) Render(dst *image.RGBA, objects []*state.Object, background string) error {
	w := dst.Bounds().Dx()
	h := dst.Bounds().Dy()

	bg := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if background != "" {
		if c, err := interp.ParseColor(background); err == nil {
			cr, cg, cb, _ := c.RGBA8()
			bg = color.NRGBA{R: cr, G: cg, B: cb, A: 0xff}
		}
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	m := make(state.Map, len(objects))
	for _, o := range objects {
		m[o.ID] = o
	}

	cv := &canvas{dst: dst, w: float64(w), h: float64(h)}
	for _, o := range objects {
		r.drawObject(cv, m, o)
	}
	return nil
}

func (r *Renderer) warn(id, msg string) {
	if r.Warn != nil {
		r.Warn(id, msg)
	}
}

func (r *Renderer) drawObject(cv *canvas, m state.Map, o *state.Object) {
	opacity := o.Props.FloatOr("opacity", 1)
	if opacity <= 0 {
		return
	}

	if o.Type == "connector" {
		r.drawConnector(cv, m, o, opacity)
		return
	}

	tr, err := transform.Resolve(m, o.ID)
	if err != nil {
		r.warn(o.ID, err.Error())
		return
	}

	g := geometry{
		cx:       tr.X / 100 * cv.w,
		cy:       tr.Y / 100 * cv.h,
		halfW:    sizeOf(o, "width") / 2 * tr.Scale / 100 * cv.w,
		halfH:    sizeOf(o, "height") / 2 * tr.Scale / 100 * cv.h,
		rotation: tr.Rotation * math.Pi / 180,
	}

	if _, ok := o.Props.Sub("shadow"); ok {
		r.drawShadow(cv, o, g, opacity)
	}

	switch o.Type {
	case "rect", "box", "group":
		r.drawRect(cv, o, g, opacity)
	case "ellipse", "circle":
		r.drawEllipse(cv, o, g, opacity)
	case "text", "label":
		r.drawText(cv, o, g, opacity)
	case "qrcode":
		r.drawQR(cv, o, g, opacity)
	default:
		// Unknown types still occupy space; draw them as plain rects so the
		// author sees something rather than nothing.
		r.drawRect(cv, o, g, opacity)
	}
}

func sizeOf(o *state.Object, dim string) float64 {
	if v, ok := o.Props.Float(dim); ok {
		return v
	}
	return o.Props.FloatOr("size", 0)
}

func (r *Renderer) drawRect(cv *canvas, o *state.Object, g geometry, opacity float64) {
	fill, ok := fillColor(o, "fill", opacity)
	if !ok && o.Type == "group" {
		return // groups without a fill are invisible containers
	}

	radius := o.Props.FloatOr("corner_radius", 0) / 100 * cv.w
	if sw := o.Props.FloatOr("stroke_width", 0); sw > 0 {
		if stroke, ok := fillColor(o, "stroke", opacity); ok {
			swPx := sw / 100 * cv.w
			cv.fillRoundRect(grow(g, swPx), radius+swPx, stroke)
		}
	}
	if ok {
		cv.fillRoundRect(g, radius, fill)
	}
}

func (r *Renderer) drawEllipse(cv *canvas, o *state.Object, g geometry, opacity float64) {
	if sw := o.Props.FloatOr("stroke_width", 0); sw > 0 {
		if stroke, ok := fillColor(o, "stroke", opacity); ok {
			cv.fillEllipse(grow(g, sw/100*cv.w), stroke)
		}
	}
	if fill, ok := fillColor(o, "fill", opacity); ok {
		cv.fillEllipse(g, fill)
	}
}

func (r *Renderer) drawShadow(cv *canvas, o *state.Object, g geometry, opacity float64) {
	sb, _ := o.Props.Sub("shadow")
	spec := sb.StrOr("color", "rgba(0,0,0,0.3)")
	c, err := interp.ParseColor(spec)
	if err != nil {
		return
	}
	// Blur is approximated with extra translucency; a real gaussian pass is
	// not worth its cost at export resolutions.
	alpha := c.Alpha * opacity
	if blur := sb.FloatOr("blur", 0); blur > 0 {
		alpha *= 0.6
	}
	sg := g
	sg.cx += sb.FloatOr("offset_x", 0) / 100 * cv.w
	sg.cy += sb.FloatOr("offset_y", 0) / 100 * cv.h
	cr, cg2, cb, _ := c.RGBA8()
	col := color.NRGBA{R: cr, G: cg2, B: cb, A: uint8(clamp01(alpha)*255 + 0.5)}
	if o.Type == "ellipse" || o.Type == "circle" {
		cv.fillEllipse(sg, col)
	} else {
		cv.fillRoundRect(sg, o.Props.FloatOr("corner_radius", 0)/100*cv.w, col)
	}
}

func (r *Renderer) drawText(cv *canvas, o *state.Object, g geometry, opacity float64) {
	content := o.Props.StrOr("text", o.Props.StrOr("content", ""))
	if content == "" {
		return
	}
	col, ok := fillColor(o, "color", opacity)
	if !ok {
		col = color.NRGBA{A: uint8(clamp01(opacity)*255 + 0.5)}
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, content).Ceil()
	d := &font.Drawer{
		Dst:  cv.dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.P(
			int(g.cx)-width/2,
			int(g.cy)+face.Metrics().Ascent.Ceil()/2,
		),
	}
	d.DrawString(content)
}

func (r *Renderer) drawQR(cv *canvas, o *state.Object, g geometry, opacity float64) {
	content := o.Props.StrOr("content", "")
	if content == "" {
		r.warn(o.ID, "qrcode without content")
		return
	}
	side := int(math.Max(g.halfW, g.halfH) * 2)
	if side < 16 {
		side = 16
	}
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		r.warn(o.ID, "qrcode encode: "+err.Error())
		return
	}
	img := qr.Image(side)
	target := image.Rect(
		int(g.cx)-side/2, int(g.cy)-side/2,
		int(g.cx)+side/2, int(g.cy)+side/2,
	)
	draw.Draw(cv.dst, target, img, img.Bounds().Min, draw.Over)
}

func (r *Renderer) drawConnector(cv *canvas, m state.Map, o *state.Object, opacity float64) {
	fromID, _ := o.Props.Str("from")
	toID, _ := o.Props.Str("to")
	fx, fy, err := transform.AnchorPoint(m, fromID, o.Props.StrOr("from_anchor", transform.AnchorCenter))
	if err != nil {
		r.warn(o.ID, "connector from: "+err.Error())
		return
	}
	tx, ty, err := transform.AnchorPoint(m, toID, o.Props.StrOr("to_anchor", transform.AnchorCenter))
	if err != nil {
		r.warn(o.ID, "connector to: "+err.Error())
		return
	}

	col, ok := fillColor(o, "stroke", opacity)
	if !ok {
		col = color.NRGBA{A: uint8(clamp01(opacity)*255 + 0.5)}
	}
	width := o.Props.FloatOr("stroke_width", 0.4) / 100 * cv.w
	cv.strokeLine(
		fx/100*cv.w, fy/100*cv.h,
		tx/100*cv.w, ty/100*cv.h,
		width, col,
	)
}

func fillColor(o *state.Object, key string, opacity float64) (color.NRGBA, bool) {
	spec, ok := o.Props.Str(key)
	if !ok {
		return color.NRGBA{}, false
	}
	c, err := interp.ParseColor(spec)
	if err != nil {
		return color.NRGBA{}, false
	}
	cr, cg, cb, _ := c.RGBA8()
	a := clamp01(c.Alpha * opacity)
	return color.NRGBA{R: cr, G: cg, B: cb, A: uint8(a*255 + 0.5)}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func grow(g geometry, by float64) geometry {
	g.halfW += by
	g.halfH += by
	return g
}
