package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
)

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	if radius < 0 {
		radius = 0
	}
	maxRadius := rect.Dx() / 2
	if r := rect.Dy() / 2; r < maxRadius {
		maxRadius = r
	}
	if radius > maxRadius {
		radius = maxRadius
	}
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	// center band plus the two side bands between the corners
	core := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	if core.Dx() > 0 {
		imagedraw.Draw(img, core, fill, image.Point{}, imagedraw.Over)
	}
	left := image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius)
	if left.Dy() > 0 {
		imagedraw.Draw(img, left, fill, image.Point{}, imagedraw.Over)
	}
	right := image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius)
	if right.Dy() > 0 {
		imagedraw.Draw(img, right, fill, image.Point{}, imagedraw.Over)
	}

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, center := range corners {
		drawQuarterDisc(img, center, radius, clr, rect)
	}
}

// drawQuarterDisc fills the part of the disc that lies outside the bands
// already painted, so translucent panels are not blended twice.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, clr color.Color, rect image.Rectangle) {
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			px, py := center.X+x, center.Y+y
			inCore := px >= rect.Min.X+radius && px < rect.Max.X-radius
			inSide := py >= rect.Min.Y+radius && py < rect.Max.Y-radius
			if inCore || inSide {
				continue
			}
			blendPixel(img, px, py, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if img == nil {
		return
	}
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}

	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	// RGBA() is alpha-premultiplied
	srcR := float64(sr) / 65535.0
	srcG := float64(sg) / 65535.0
	srcB := float64(sb) / 65535.0

	dst := img.RGBAAt(x, y)
	dstR := float64(dst.R) / 255.0
	dstG := float64(dst.G) / 255.0
	dstB := float64(dst.B) / 255.0
	dstA := float64(dst.A) / 255.0

	inv := 1 - srcA
	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8((srcR + dstR*inv) * 255.0),
		G: floatToUint8((srcG + dstG*inv) * 255.0),
		B: floatToUint8((srcB + dstB*inv) * 255.0),
		A: floatToUint8((srcA + dstA*inv) * 255.0),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
