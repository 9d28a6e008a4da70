// planetool is a CLI utility for checking synthetic scene descriptions.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-xr/internal/depth"
	"github.com/Faultbox/midgard-xr/internal/logger"
	"github.com/Faultbox/midgard-xr/internal/simulator"
	"github.com/Faultbox/midgard-xr/internal/world"
	"github.com/Faultbox/midgard-xr/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "validate", "check":
		os.Exit(cmdValidate(args))
	case "info":
		os.Exit(cmdInfo(args))
	case "depth":
		os.Exit(cmdDepth(args))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`planetool - synthetic scene description utility

Usage:
  planetool <command> <file|url>

Commands:
  validate <file>    Report entries that would be skipped
  info <scene>       List the planes a scene publishes
  depth <scene>      Print a coarse depth preview from the default viewer

Examples:
  planetool validate scenes/room.yaml
  planetool info http://localhost:8080/room.json`)
}

// load publishes a scene into a fresh registry, logging to stderr.
func load(location string) (*world.Registry, int, error) {
	if err := logger.Init("warn", ""); err != nil {
		return nil, 0, err
	}
	reg := world.NewRegistry(nil)
	l := simulator.NewLoader(reg, simulator.LoaderOptions{Log: logger.Named("loader")})

	ctx, cancel := context.WithTimeout(context.Background(), simulator.DefaultFetchTimeout)
	defer cancel()
	return reg, l.Load(ctx, location, math.Vec3{}), nil
}

func cmdValidate(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: planetool validate <file>")
		return 1
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	planes, errs := simulator.ParseDescription(data, math.Vec3{})
	for _, err := range errs {
		fmt.Printf("  skip: %v\n", err)
	}

	bad := 0
	for i, sp := range planes {
		if _, err := world.NewTrackedPlane(sp); err != nil {
			fmt.Printf("  skip: plane %q (#%d): %v\n", sp.Type, i, err)
			bad++
		}
	}

	fmt.Printf("%d planes ok, %d skipped\n", len(planes)-bad, len(errs)+bad)
	if len(errs)+bad > 0 {
		return 2
	}
	return 0
}

func cmdInfo(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: planetool info <scene>")
		return 1
	}

	reg, n, err := load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	fmt.Printf("Scene: %s\n", args[0])
	fmt.Printf("Planes: %d\n\n", n)
	fmt.Printf("%-12s %-11s %8s %8s %5s  %s\n", "TYPE", "ORIENT", "AREA", "POLY", "TRIS", "POSITION")
	fmt.Println(strings.Repeat("-", 70))
	for _, p := range reg.Planes() {
		sp, _ := p.Synthetic()
		pos := p.Pose().Position
		fmt.Printf("%-12s %-11s %8.2f %8.2f %5d  (%.2f, %.2f, %.2f)\n",
			p.Label(), p.Orientation(), sp.Area, math32.Abs(math.PolygonArea(sp.Polygon)),
			p.Geometry().TriangleCount(), pos.X, pos.Y, pos.Z)
	}
	return 0
}

// depthRamp maps near to far.
const depthRamp = "@%#*+=-:. "

func cmdDepth(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: planetool depth <scene>")
		return 1
	}

	reg, _, err := load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	const width, height = 64, 24
	src := &simulator.DepthSource{Encoding: depth.EncodingFloat32, MaxDepth: 8}
	frame := src.Render(simulator.DefaultRig(width, height).Camera(0, 0), reg.Planes(), time.Now())

	cache := depth.New(depth.Options{Encoding: depth.EncodingFloat32, Log: logger.Named("depth")})
	if err := cache.UpdateFromRawFrame(frame, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	tex, err := cache.Get(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var b strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d, _ := tex.DepthAt(x, y)
			b.WriteByte(shade(d, src.MaxDepth))
		}
		b.WriteByte('\n')
	}
	fmt.Print(b.String())
	return 0
}

func shade(d, maxDepth float32) byte {
	if d <= 0 {
		return ' '
	}
	i := int(d / maxDepth * float32(len(depthRamp)-1))
	return depthRamp[min(i, len(depthRamp)-2)]
}

