package io

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"iter"
	"maps"
	"math"
	"strings"

	"golang.org/x/image/bmp"
)

const (
	SCREEN_WIDTH  = 128
	SCREEN_HEIGHT = 64

	CHAR_WIDTH   = 6 // Character cell width, including spacing.
	CHAR_HEIGHT  = 8 // Character cell height, including spacing.
	TEXT_COLUMNS = SCREEN_WIDTH / CHAR_WIDTH
	TEXT_ROWS    = SCREEN_HEIGHT / CHAR_HEIGHT

	COLOR_DEFAULT = 2
)

// Palette of the eight screen colors, by color index.
var Palette = color.Palette{
	color.RGBA{0x00, 0x00, 0x00, 0xff},
	color.RGBA{0xff, 0x00, 0x00, 0xff},
	color.RGBA{0x00, 0xff, 0x00, 0xff},
	color.RGBA{0x00, 0x00, 0xff, 0xff},
	color.RGBA{0xff, 0xff, 0x00, 0xff},
	color.RGBA{0xff, 0x00, 0xff, 0xff},
	color.RGBA{0x00, 0xff, 0xff, 0xff},
	color.RGBA{0xff, 0xff, 0xff, 0xff},
}

var colorName = []string{"BLACK", "RED", "GREEN", "BLUE", "YELLOW", "MAGENTA", "CYAN", "WHITE"}

// font is a 5x7 glyph set. Each row is read MSB first from bit 4.
var font = map[int32][7]uint8{
	' ': {0, 0, 0, 0, 0, 0, 0},
	'A': {0x1f, 0x24, 0x44, 0x24, 0x1f, 0, 0},
	'B': {0x7f, 0x49, 0x49, 0x49, 0x36, 0, 0},
	'C': {0x3e, 0x41, 0x41, 0x41, 0x22, 0, 0},
	'E': {0x7f, 0x49, 0x49, 0x49, 0x41, 0, 0},
	'H': {0x7f, 0x08, 0x08, 0x08, 0x7f, 0, 0},
	'L': {0x7f, 0x01, 0x01, 0x01, 0x01, 0, 0},
	'O': {0x3e, 0x41, 0x41, 0x41, 0x3e, 0, 0},
}

// Screen is a 128x64 framebuffer. A pixel of 0 is off, any other value is
// lit in the active color.
type Screen struct {
	Pixels  [SCREEN_HEIGHT][SCREEN_WIDTH]int32
	CursorX int32
	CursorY int32
	Color   int32 // Active palette index.
}

var _ Device = (*Screen)(nil)

// Defines returns an iter of defines for the screen.
func (scr *Screen) Defines() iter.Seq2[string, string] {
	defines := map[string]string{
		"SCREEN_WIDTH":  fmt.Sprintf("%d", SCREEN_WIDTH),
		"SCREEN_HEIGHT": fmt.Sprintf("%d", SCREEN_HEIGHT),
	}
	for n, name := range colorName {
		defines["COLOR_"+name] = fmt.Sprintf("%d", n)
	}
	return maps.All(defines)
}

// Reset clears the screen, homes the cursor, and restores the default color.
func (scr *Screen) Reset() {
	scr.Clear()
	scr.Color = COLOR_DEFAULT
}

// Clear the framebuffer and home the cursor.
func (scr *Screen) Clear() {
	scr.Pixels = [SCREEN_HEIGHT][SCREEN_WIDTH]int32{}
	scr.CursorX = 0
	scr.CursorY = 0
}

func inBounds(x, y int64) bool {
	return x >= 0 && x < SCREEN_WIDTH && y >= 0 && y < SCREEN_HEIGHT
}

// plot sets a pixel, dropping coordinates off the screen.
func (scr *Screen) plot(x, y int64, value int32) {
	if inBounds(x, y) {
		scr.Pixels[y][x] = value
	}
}

// SetPixel sets a pixel, if in bounds.
func (scr *Screen) SetPixel(x, y int32, value int32) {
	scr.plot(int64(x), int64(y), value)
}

// Pixel returns a pixel value, and false if out of bounds.
func (scr *Screen) Pixel(x, y int32) (value int32, ok bool) {
	if !inBounds(int64(x), int64(y)) {
		return
	}

	value = scr.Pixels[y][x]
	ok = true
	return
}

// SetColor selects the active color, modulo the palette size.
func (scr *Screen) SetColor(index int32) {
	n := int32(len(Palette))
	scr.Color = ((index % n) + n) % n
}

// DrawLine draws a Bresenham line between two points, inclusive. Lines
// whose bounding box misses the screen are skipped.
func (scr *Screen) DrawLine(x1, y1, x2, y2 int32) {
	ax, ay, bx, by := int64(x1), int64(y1), int64(x2), int64(y2)

	if max(ax, bx) < 0 || min(ax, bx) >= SCREEN_WIDTH ||
		max(ay, by) < 0 || min(ay, by) >= SCREEN_HEIGHT {
		return
	}

	dx := abs64(bx - ax)
	dy := abs64(by - ay)
	sx := int64(-1)
	if ax < bx {
		sx = 1
	}
	sy := int64(-1)
	if ay < by {
		sy = 1
	}

	switch {
	case dx == 0:
		for y := max(0, min(ay, by)); y <= min(SCREEN_HEIGHT-1, max(ay, by)); y++ {
			scr.plot(ax, y, 1)
		}
		return
	case dy == 0:
		for x := max(0, min(ax, bx)); x <= min(SCREEN_WIDTH-1, max(ax, bx)); x++ {
			scr.plot(x, ay, 1)
		}
		return
	}

	err := dx - dy
	x, y := ax, ay
	for {
		scr.plot(x, y, 1)
		if x == bx && y == by {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// DrawRect draws a rectangle outline, or a filled rectangle, clipped to
// the screen.
func (scr *Screen) DrawRect(x, y, width, height int32, filled bool) {
	left, top := int64(x), int64(y)
	right, bottom := left+int64(width), top+int64(height)

	for py := max(0, top); py < min(SCREEN_HEIGHT, bottom); py++ {
		for px := max(0, left); px < min(SCREEN_WIDTH, right); px++ {
			edge := py == top || py == bottom-1 || px == left || px == right-1
			if filled || edge {
				scr.Pixels[py][px] = 1
			}
		}
	}
}

// DrawCircle draws a circle outline with the integer midpoint algorithm.
// Circles that cannot touch the screen are skipped, and only the offsets
// of the octant that can land on the screen are walked.
func (scr *Screen) DrawCircle(cx, cy, radius int32) {
	ox, oy, r := int64(cx), int64(cy), int64(radius)

	if ox+abs64(r) < 0 || ox-abs64(r) >= SCREEN_WIDTH ||
		oy+abs64(r) < 0 || oy-abs64(r) >= SCREEN_HEIGHT {
		return
	}

	// Screen entirely inside the circle.
	farX := max(abs64(ox), abs64(ox-(SCREEN_WIDTH-1)))
	farY := max(abs64(oy), abs64(oy-(SCREEN_HEIGHT-1)))
	if abs64(r) > farX+farY+2 {
		return
	}

	points := func(x, y int64) {
		scr.plot(ox+x, oy+y, 1)
		scr.plot(ox-x, oy+y, 1)
		scr.plot(ox+x, oy-y, 1)
		scr.plot(ox-x, oy-y, 1)
		scr.plot(ox+y, oy+x, 1)
		scr.plot(ox-y, oy+x, 1)
		scr.plot(ox+y, oy-x, 1)
		scr.plot(ox-y, oy-x, 1)
	}

	if r < 0 {
		points(0, r)
		return
	}

	// Offsets along x reach the screen as columns of (ox±x, oy±y), and
	// as rows of (ox±y, oy±x).
	safe := max(0, int64(float64(r)/math.Sqrt2)-5)
	for _, span := range [][2]int64{offsets(ox, SCREEN_WIDTH), offsets(oy, SCREEN_HEIGHT)} {
		x := min(span[0], safe)
		y, d := octant(r, x)
		for {
			if x >= span[0] {
				points(x, y)
			}
			if y < x || x >= span[1] {
				break
			}
			x++
			if d > 0 {
				y--
				d += 4*(x-y) + 10
			} else {
				d += 4*x + 6
			}
		}
	}
}

// offsets returns the nearest and farthest distances from a centre to
// the cells 0..size-1.
func offsets(centre int64, size int64) [2]int64 {
	switch {
	case centre < 0:
		return [2]int64{-centre, size - 1 - centre}
	case centre >= size:
		return [2]int64{centre - (size - 1), centre}
	}
	return [2]int64{0, max(centre, size-1-centre)}
}

// octant returns the midpoint algorithm's y and decision value at offset
// x, without walking from 0. Exact for x a few steps short of the octant end.
func octant(r, x int64) (y, d int64) {
	y = r
	if x > 0 {
		// Largest y whose decision at x-1 is not positive.
		k := x - 1
		m := (r-k)*(r+k) - 4*k - 2*r - 2
		y = int64(1.5 + math.Sqrt(max(float64(m)+2.25, 0)))
		for y > 1 && y*(y-3) > m {
			y--
		}
		for (y+1)*(y-2) <= m {
			y++
		}
	}

	d = 2*(y*y-(r-x)*(r+x)) + 8*x - 6*y + 3 + 4*r
	return
}

// SetCursor moves the text cursor, clamped to the screen dimensions.
func (scr *Screen) SetCursor(x, y int32) {
	scr.CursorX = max(0, min(SCREEN_WIDTH-1, x))
	scr.CursorY = max(0, min(SCREEN_HEIGHT-1, y))
}

// PrintChar renders a glyph at the text cursor, and advances it. Glyphs
// missing from the font render as a space.
func (scr *Screen) PrintChar(char int32) {
	pattern, ok := font[char]
	if !ok {
		pattern = font[' ']
	}

	for row := range int64(7) {
		for col := range int64(5) {
			x := int64(scr.CursorX)*CHAR_WIDTH + col
			y := int64(scr.CursorY)*CHAR_HEIGHT + row
			scr.plot(x, y, int32((pattern[row]>>(4-col))&1))
		}
	}

	scr.CursorX++
	if scr.CursorX >= TEXT_COLUMNS {
		scr.CursorX = 0
		scr.CursorY = (scr.CursorY + 1) % TEXT_ROWS
	}
}

// Image renders the framebuffer, with lit pixels in the active color.
func (scr *Screen) Image() (img *image.Paletted) {
	img = image.NewPaletted(image.Rect(0, 0, SCREEN_WIDTH, SCREEN_HEIGHT), Palette)
	for y := range SCREEN_HEIGHT {
		for x := range SCREEN_WIDTH {
			if scr.Pixels[y][x] != 0 {
				img.SetColorIndex(x, y, uint8(scr.Color))
			}
		}
	}

	return
}

// WriteBMP writes the rendered framebuffer as a BMP image.
func (scr *Screen) WriteBMP(w io.Writer) (err error) {
	err = bmp.Encode(w, scr.Image())
	return
}

// String renders the framebuffer as text, one line per pixel row.
func (scr *Screen) String() string {
	var text strings.Builder
	for y := range SCREEN_HEIGHT {
		for x := range SCREEN_WIDTH {
			if scr.Pixels[y][x] != 0 {
				text.WriteByte('#')
			} else {
				text.WriteByte('.')
			}
		}
		text.WriteByte('\n')
	}

	return text.String()
}

// Lit returns the number of lit pixels.
func (scr *Screen) Lit() (count int) {
	for y := range SCREEN_HEIGHT {
		for x := range SCREEN_WIDTH {
			if scr.Pixels[y][x] != 0 {
				count++
			}
		}
	}

	return
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
