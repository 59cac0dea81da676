// Package loader implements the load pipeline: read a STEP file, normalize
// its bytes, parse the entity graph, triangulate it and flatten the
// triangles into transfer buffers.
//
// Each stage is a field of Pipeline so tests can substitute faulty
// collaborators. Stages run in order on the calling goroutine; there are no
// retries and no state shared between calls.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/foxtrot/pkg/ctxlog"
	"github.com/chazu/foxtrot/pkg/mesh"
	"github.com/chazu/foxtrot/pkg/step"
	"github.com/chazu/foxtrot/pkg/triangulate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/chazu/foxtrot/loader"

// Pipeline is one configuration of the load stages.
type Pipeline struct {
	ReadFile    func(path string) ([]byte, error)
	Parse       func(flat []byte) (*step.File, error)
	Triangulate func(f *step.File) (*mesh.Mesh, triangulate.Stats, error)

	// Alloc owns the returned buffers.
	Alloc mesh.Allocator

	// MaxInflatedSize bounds decompression; zero means
	// DefaultMaxInflatedSize.
	MaxInflatedSize int64

	// OnStats receives the triangulation statistics. When nil they are
	// dropped.
	OnStats func(triangulate.Stats)

	// TracerProvider supplies the tracer. Defaults to
	// otel.GetTracerProvider() at each call.
	TracerProvider trace.TracerProvider
}

// New returns a pipeline with the standard stages whose buffers come from
// alloc.
func New(alloc mesh.Allocator) *Pipeline {
	return &Pipeline{
		ReadFile:    os.ReadFile,
		Parse:       step.Parse,
		Triangulate: triangulate.Triangulate,
		Alloc:       alloc,
	}
}

// Load runs every stage on the file at path. On success the caller owns the
// returned buffers and must release them with p.Alloc.Free. On failure
// nothing is left allocated and the error wraps one of the Err kinds.
func (p *Pipeline) Load(ctx context.Context, path string) (_ *mesh.Flat, err error) {
	tracer := p.tracer()
	ctx, span := tracer.Start(ctx, "loader.Load",
		trace.WithAttributes(attribute.String("file.path", path)))
	defer func() { finish(span, err) }()
	log := ctxlog.FromContext(ctx).With("path", path)

	data, err := stage(ctx, tracer, "read", ErrIO, func() ([]byte, error) {
		return p.ReadFile(path)
	})
	if err != nil {
		log.Debug("load failed", "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("foxtrot.bytes", len(data)))
	log.Debug("read", "bytes", len(data))

	flat, err := stage(ctx, tracer, "normalize", ErrFormat, func() ([]byte, error) {
		return Normalize(data, p.MaxInflatedSize)
	})
	if err != nil {
		log.Debug("load failed", "err", err)
		return nil, err
	}

	f, err := stage(ctx, tracer, "parse", ErrParse, func() (*step.File, error) {
		f, err := p.Parse(flat)
		if err == nil && f == nil {
			err = errors.New("parser returned no file")
		}
		return f, err
	})
	if err != nil {
		log.Debug("load failed", "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("foxtrot.entities", f.Len()))
	log.Debug("parsed", "entities", f.Len())

	m, err := stage(ctx, tracer, "triangulate", ErrGeometry, func() (*mesh.Mesh, error) {
		m, st, err := p.Triangulate(f)
		if p.OnStats != nil {
			p.OnStats(st)
		}
		if err == nil && m == nil {
			err = errors.New("triangulator returned no mesh")
		}
		return m, err
	})
	if err != nil {
		log.Debug("load failed", "err", err)
		return nil, err
	}

	out, err := stage(ctx, tracer, "flatten", ErrGeometry, func() (*mesh.Flat, error) {
		return mesh.Flatten(m, p.Alloc)
	})
	if err != nil {
		log.Debug("load failed", "err", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("foxtrot.vertices", out.VertexCount()),
		attribute.Int("foxtrot.triangles", out.TriangleCount()),
	)
	log.Debug("loaded", "vertices", out.VertexCount(), "triangles", out.TriangleCount())
	return out, nil
}

func (p *Pipeline) tracer() trace.Tracer {
	tp := p.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

// stage runs fn in a child span and tags its error with kind.
func stage[T any](ctx context.Context, tracer trace.Tracer, name string, kind error, fn func() (T, error)) (v T, err error) {
	_, span := tracer.Start(ctx, name)
	defer func() { finish(span, err) }()
	v, err = fn()
	if err != nil {
		return v, fmt.Errorf("loader: %s: %w: %w", name, kind, err)
	}
	return v, nil
}

// finish ends span, recording err. A span unwound by a panic ends with
// unset status.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
	}
	span.End()
}
