// Package logging wraps log/slog with file rotation and context-attribute
// propagation, so release-scoped correlation fields travel with the
// context rather than with every logger handle.
package logging

import (
	"context"
	"log/slog"
	"maps"
)

type data map[string]slog.Attr

func (d data) append(attrs ...slog.Attr) {
	for _, attr := range attrs {
		d[attr.Key] = attr
	}
}

type dataKey struct{}

func cloneData(ctx context.Context) data {
	d, ok := ctx.Value(dataKey{}).(data)
	if !ok {
		return data{}
	}
	return maps.Clone(d)
}

// WithAttrs returns a new context carrying the given attributes, merged with
// any already attached. Handlers built by NewHandler attach them to every
// record logged with that context.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	d := cloneData(ctx)
	d.append(attrs...)
	return context.WithValue(ctx, dataKey{}, d)
}

// With returns a new context with the given key-value pairs attached,
// mirroring slog's variadic Add semantics.
func With(ctx context.Context, kvargs ...any) context.Context {
	if len(kvargs) == 0 {
		return ctx
	}
	d := cloneData(ctx)
	var r slog.Record
	r.Add(kvargs...)
	r.Attrs(func(a slog.Attr) bool {
		d[a.Key] = a
		return true
	})
	return context.WithValue(ctx, dataKey{}, d)
}

// ReleaseContext attaches the correlation fields every release-scoped log
// line carries: release ID and release name.
func ReleaseContext(ctx context.Context, releaseID, releaseName string) context.Context {
	return WithAttrs(ctx,
		slog.String("release_id", releaseID),
		slog.String("release_name", releaseName),
	)
}

func iterAttrs(ctx context.Context) func(func(attr slog.Attr) bool) {
	return func(yield func(attr slog.Attr) bool) {
		d, ok := ctx.Value(dataKey{}).(data)
		if !ok {
			return
		}
		for _, v := range d {
			if !yield(v) {
				return
			}
		}
	}
}

type dataHook struct{}

func (dataHook) run(ctx context.Context, r *slog.Record) {
	iterAttrs(ctx)(func(a slog.Attr) bool {
		r.AddAttrs(a)
		return true
	})
}
