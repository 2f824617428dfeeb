package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"megabots.dev/internal/sim/mapfile"
)

func main() {
	var (
		out      = flag.String("out", "./configs/maps/warehouse.json", "output map path")
		width    = flag.Int("width", 24, "map width (odd sizes give a closed maze border)")
		height   = flag.Int("height", 24, "map height")
		openness = flag.Float64("openness", 0.15, "fraction of inner chests knocked out to form loops (0..1)")
		seed     = flag.Int64("seed", 1337, "maze seed")
		preview  = flag.Bool("preview", false, "print the map as text")
	)
	flag.Parse()

	if *width < 3 || *height < 3 {
		fmt.Fprintln(os.Stderr, "map must be at least 3x3")
		os.Exit(2)
	}
	if *openness < 0 || *openness > 1 {
		fmt.Fprintln(os.Stderr, "openness must be within [0,1]")
		os.Exit(2)
	}

	m := mapfile.GenerateMaze(*width, *height, *openness, rand.New(rand.NewSource(*seed)))
	if err := m.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "generated map invalid:", err)
		os.Exit(1)
	}
	if err := mapfile.Save(*out, m); err != nil {
		fmt.Fprintln(os.Stderr, "save:", err)
		os.Exit(1)
	}
	if *preview {
		fmt.Print(render(m))
	}
	fmt.Printf("wrote %s (%dx%d seed=%d)\n", *out, m.Width, m.Height, *seed)
}

func render(m *mapfile.Map) string {
	var b strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			switch m.At(x, y) {
			case mapfile.Floor:
				b.WriteByte('.')
			case mapfile.Chest:
				b.WriteByte('#')
			case mapfile.Wall:
				b.WriteByte('X')
			default:
				b.WriteByte('?')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
