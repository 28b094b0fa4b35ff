package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// Icon returns the tray icon as PNG: a rounded pad body with a d-pad and
// two face buttons.
func Icon() []byte {
	iconOnce.Do(func() {
		iconData = renderIcon()
	})
	return iconData
}

func renderIcon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	body := color.NRGBA{R: 0x3a, G: 0x86, B: 0xff, A: 0xff}
	mark := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	for y := 8; y < 24; y++ {
		for x := 2; x < 30; x++ {
			// Clip the corners for a rounded outline.
			if (x < 4 || x > 27) && (y < 10 || y > 21) {
				continue
			}
			img.SetNRGBA(x, y, body)
		}
	}
	// D-pad.
	for i := 7; i < 14; i++ {
		img.SetNRGBA(i, 15, mark)
		img.SetNRGBA(i, 16, mark)
		img.SetNRGBA(10, i+5, mark)
		img.SetNRGBA(11, i+5, mark)
	}
	// Face buttons.
	for _, c := range [][2]int{{21, 13}, {24, 17}} {
		for dy := 0; dy < 3; dy++ {
			for dx := 0; dx < 3; dx++ {
				img.SetNRGBA(c[0]+dx, c[1]+dy, mark)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
