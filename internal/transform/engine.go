// Package transform implements the TRANSFORM stage: a registry of
// per-family transformers over a shared, reflection-free field-mapping
// engine.
package transform

import (
	"fmt"
	"sync"
	"time"

	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// plan is the compiled mapping between one source shape and one target
// shape: which source field feeds which target column, and how to convert
// it. Plans are built once per source type and cached for the process
// lifetime.
type plan struct {
	steps []planStep
}

type planStep struct {
	srcIdx  int
	dstIdx  int
	convert convertFunc
}

// convertFunc converts a non-null source value into the target column's
// kind.
type convertFunc func(models.Value) (models.Value, error)

var planCache sync.Map // sourceType -> *plan

// planFor returns the cached mapping plan for a source family, building
// it on first use.
func planFor(sourceType, dataType string, srcSchema []models.FieldSpec, renames map[string]string, logger *zap.Logger) (*plan, error) {
	if cached, ok := planCache.Load(sourceType); ok {
		return cached.(*plan), nil
	}

	dstSchema, ok := models.TargetSchema(dataType)
	if !ok {
		return nil, fmt.Errorf("no target schema for data type %q", dataType)
	}
	dstIndex := make(map[string]int, len(dstSchema))
	for i, f := range dstSchema {
		dstIndex[f.Name] = i
	}

	p := &plan{}
	for srcIdx, srcField := range srcSchema {
		// Explicit remappings take precedence over the name match and
		// exclude the source field from the name-match pass.
		dstName := srcField.Name
		if renamed, ok := renames[srcField.Name]; ok {
			dstName = renamed
		}

		dstIdx, ok := dstIndex[dstName]
		if !ok {
			continue // target keeps its sentinel default
		}

		conv, ok := conversionFor(srcField.Kind, dstSchema[dstIdx].Kind)
		if !ok {
			logger.Warn("no conversion for field, skipping",
				zap.String("source_type", sourceType),
				zap.String("field", srcField.Name),
				zap.String("from", srcField.Kind.String()),
				zap.String("to", dstSchema[dstIdx].Kind.String()))
			continue
		}
		p.steps = append(p.steps, planStep{srcIdx: srcIdx, dstIdx: dstIdx, convert: conv})
	}

	actual, _ := planCache.LoadOrStore(sourceType, p)
	return actual.(*plan), nil
}

// conversionFor is the type conversion table. Null handling happens in
// apply: a null source value never touches the target, so sentinels
// survive.
func conversionFor(src, dst models.Kind) (convertFunc, bool) {
	if src == dst {
		return func(v models.Value) (models.Value, error) { return v, nil }, true
	}
	switch {
	case src == models.KindDateString && dst == models.KindDate:
		return func(v models.Value) (models.Value, error) {
			t, err := time.ParseInLocation(etl.DottedDateFormat, v.Str, time.Local)
			if err != nil {
				return models.Value{}, fmt.Errorf("bad date %q: %w", v.Str, err)
			}
			return models.DateValue(t), nil
		}, true
	case src == models.KindDateTime && dst == models.KindInstant:
		// Local wall-clock to instant using the system time zone; the
		// parser already attached time.Local.
		return func(v models.Value) (models.Value, error) {
			return models.InstantValue(v.Time), nil
		}, true
	case src == models.KindInt && dst == models.KindLong,
		src == models.KindLong && dst == models.KindInt:
		return func(v models.Value) (models.Value, error) {
			out := models.NullOf(dst)
			out.Int = v.Int
			out.Null = false
			return out, nil
		}, true
	default:
		return nil, false
	}
}

// apply maps one source record onto a fresh all-sentinel target record.
func (p *plan) apply(rec models.SourceRecord, dataType string) (*models.TargetRecord, error) {
	target, err := models.NewTargetRecord(dataType)
	if err != nil {
		return nil, err
	}

	values := rec.FieldValues()
	for _, step := range p.steps {
		v := values[step.srcIdx]
		if v.Null {
			continue // unset stays at the target sentinel
		}
		converted, err := step.convert(v)
		if err != nil {
			return nil, err
		}
		if err := target.SetIndex(step.dstIdx, converted); err != nil {
			return nil, err
		}
	}
	return target, nil
}
