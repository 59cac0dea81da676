// Command foxtrot loads a STEP file and reports the triangle mesh it
// produces. It exercises the same pipeline the shared library exposes,
// either directly or through the C boundary with -ffi.
//
// Usage:
//
//	foxtrot [-ffi] [-stats] [-stl out.stl] [-trace] [-v] FILE
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/chazu/foxtrot/pkg/cmem"
	"github.com/chazu/foxtrot/pkg/ctxlog"
	"github.com/chazu/foxtrot/pkg/ffi"
	"github.com/chazu/foxtrot/pkg/loader"
	"github.com/chazu/foxtrot/pkg/mesh"
	"github.com/chazu/foxtrot/pkg/triangulate"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
)

// exitError carries a specific exit code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, exit.msg)
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "foxtrot:", err)
		os.Exit(1)
	}
}

type options struct {
	path    string
	ffi     bool
	stats   bool
	stl     string
	trace   bool
	verbose bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("foxtrot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, "Usage:\n  foxtrot [options] FILE\n\nOptions:\n")
		fs.PrintDefaults()
	}
	var o options
	fs.BoolVar(&o.ffi, "ffi", false, "load through the C boundary (foxtrot_load_step)")
	fs.BoolVar(&o.stats, "stats", false, "print triangulation statistics as YAML (not with -ffi)")
	fs.StringVar(&o.stl, "stl", "", "write the mesh to `file` as binary STL")
	fs.BoolVar(&o.trace, "trace", false, "write pipeline spans to stderr")
	fs.BoolVar(&o.verbose, "v", false, "log pipeline stages (not with -ffi)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil
		}
		return nil, &exitError{code: 2, msg: err.Error()}
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, &exitError{code: 2, msg: "foxtrot: expected exactly one STEP file"}
	}
	// The C boundary logs nowhere and reports no statistics.
	if o.ffi && o.stats {
		return nil, &exitError{code: 2, msg: "foxtrot: -stats is not available with -ffi"}
	}
	if o.ffi && o.verbose {
		return nil, &exitError{code: 2, msg: "foxtrot: -v is not available with -ffi"}
	}
	o.path = fs.Arg(0)
	return &o, nil
}

// run is the whole command minus process exit, so tests can drive it.
func run(stdout, stderr io.Writer, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	o, err := parseArgs(args, stderr)
	if err != nil || o == nil {
		return err
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	if o.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		defer tp.Shutdown(ctx)
		otel.SetTracerProvider(tp)
	}

	start := time.Now()
	var flat *mesh.Flat
	if o.ffi {
		cp := cmem.CString(o.path)
		defer cmem.Free(cp)
		var s ffi.MeshSlice
		if !ffi.Load(cp, &s) {
			return fmt.Errorf("%s: foxtrot_load_step failed", o.path)
		}
		defer ffi.Release(&s)
		flat = s.Flat()
	} else {
		var st triangulate.Stats
		p := loader.New(mesh.Heap{})
		p.OnStats = func(s triangulate.Stats) { st = s }
		flat, err = p.Load(ctx, o.path)
		if o.stats {
			if yerr := writeStats(stdout, st); yerr != nil && err == nil {
				err = yerr
			}
		}
		if err != nil {
			return err
		}
	}
	logger.Info("loaded", "path", o.path, "elapsed", time.Since(start).Round(time.Microsecond))

	fmt.Fprintf(stdout, "vertices=%d triangles=%d\n", flat.VertexCount(), flat.TriangleCount())
	if lo, hi, ok := bounds(flat); ok {
		fmt.Fprintf(stdout, "bounds=[%g %g %g]..[%g %g %g]\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	}
	if o.stl != "" {
		if err := render.SaveSTL(o.stl, triangles(flat)); err != nil {
			return err
		}
		logger.Info("wrote stl", "path", o.stl, "triangles", flat.TriangleCount())
	}
	return nil
}

func writeStats(w io.Writer, st triangulate.Stats) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return err
	}
	return enc.Close()
}

func vertex(f *mesh.Flat, i uint32) v3.Vec {
	p := f.Vertices[3*i : 3*i+3]
	return v3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}

// bounds returns the axis-aligned bounding box of the vertices.
func bounds(f *mesh.Flat) (lo, hi v3.Vec, ok bool) {
	if f.IsEmpty() {
		return lo, hi, false
	}
	lo = v3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = lo.Neg()
	for i := 0; i < f.VertexCount(); i++ {
		p := vertex(f, uint32(i))
		lo, hi = lo.Min(p), hi.Max(p)
	}
	return lo, hi, true
}

func triangles(f *mesh.Flat) []*sdf.Triangle3 {
	out := make([]*sdf.Triangle3, 0, f.TriangleCount())
	for i := 0; i < len(f.Indices); i += 3 {
		out = append(out, &sdf.Triangle3{
			vertex(f, f.Indices[i]),
			vertex(f, f.Indices[i+1]),
			vertex(f, f.Indices[i+2]),
		})
	}
	return out
}
