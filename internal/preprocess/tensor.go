package preprocess

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"wastesort/internal/errs"
	"wastesort/internal/tensor"
)

// Cover fills w×h while keeping the aspect ratio: it crops the largest
// centered region of img with the target aspect, then scales it. Memory is
// bounded by the source and the w×h output.
func Cover(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if (iw == w && ih == h) || w <= 0 || h <= 0 || iw == 0 || ih == 0 {
		return img
	}
	cw, ch := cropSize(iw, ih, w, h)
	crop := image.NewNRGBA(image.Rect(0, 0, cw, ch))
	off := image.Pt(b.Min.X+(iw-cw)/2, b.Min.Y+(ih-ch)/2)
	draw.Draw(crop, crop.Bounds(), img, off, draw.Src)
	if cw == w && ch == h {
		return crop
	}
	return resize.Resize(uint(w), uint(h), crop, resize.Bilinear)
}

// cropSize returns the largest iw×ih sub-rectangle with aspect w:h.
func cropSize(iw, ih, w, h int) (cw, ch int) {
	if int64(iw)*int64(h) > int64(ih)*int64(w) {
		// source is wider than the target
		cw, ch = int((int64(ih)*int64(w)+int64(h)/2)/int64(h)), ih
	} else {
		cw, ch = iw, int((int64(iw)*int64(h)+int64(w)/2)/int64(w))
	}
	return max(1, min(cw, iw)), max(1, min(ch, ih))
}

// rgba returns non-premultiplied RGBA bytes for img, row-major.
func rgba(img image.Image) []byte {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n.Pix
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}

// ToTensor converts a w×h image to a float tensor in [0,1] with alpha
// dropped. The shape is [1,h,w,3] for NHWC and [1,3,h,w] for NCHW.
func ToTensor(img image.Image, w, h int, layout tensor.Layout) (*tensor.Tensor, error) {
	if w <= 0 || h <= 0 {
		return nil, errs.New(errs.TensorConversionError, fmt.Sprintf("invalid target size %dx%d", w, h))
	}
	pix := rgba(img)
	if need := w * h * 4; len(pix) < need {
		return nil, errs.New(errs.TensorConversionError,
			fmt.Sprintf("image data is corrupted or too small: expected at least %d bytes, got %d", need, len(pix)))
	}
	const inv = 1.0 / 255
	plane := w * h
	var t *tensor.Tensor
	if layout == tensor.NCHW {
		t = tensor.New(1, 3, h, w)
		d := t.Data()
		for i := 0; i < plane; i++ {
			p := pix[4*i:]
			d[i] = float32(p[0]) * inv
			d[plane+i] = float32(p[1]) * inv
			d[2*plane+i] = float32(p[2]) * inv
		}
		return t, nil
	}
	t = tensor.New(1, h, w, 3)
	d := t.Data()
	for i := 0; i < plane; i++ {
		p := pix[4*i:]
		d[3*i] = float32(p[0]) * inv
		d[3*i+1] = float32(p[1]) * inv
		d[3*i+2] = float32(p[2]) * inv
	}
	return t, nil
}

// Image decodes b and produces the input tensor for a w×h model.
func Image(b []byte, mimeHint string, w, h int, layout tensor.Layout) (*tensor.Tensor, error) {
	img, _, err := Decode(b, mimeHint)
	if err != nil {
		return nil, err
	}
	return ToTensor(Cover(img, w, h), w, h, layout)
}
