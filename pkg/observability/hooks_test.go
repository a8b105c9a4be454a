package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnStageStart(ctx, "full", "discover")
	p.OnStageComplete(ctx, "full", "discover", 120, time.Second, nil)
	p.OnMethodComplete(ctx, "full", 4, time.Second, errors.New("boom"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "features")
	c.OnCacheMiss(ctx, "cells")
	c.OnCacheSet(ctx, "features", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "/methods/{name}/components", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)

	// Setting nil should be ignored
	SetPipelineHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}

	Reset()
}

func TestCustomHooksReceiveEvents(t *testing.T) {
	Reset()
	defer Reset()

	rec := &recordingHooks{}
	SetPipelineHooks(rec)

	ctx := context.Background()
	Pipeline().OnStageStart(ctx, "religion", "reduce")
	Pipeline().OnStageComplete(ctx, "religion", "reduce", 7, time.Millisecond, nil)
	Pipeline().OnMethodComplete(ctx, "religion", 2, time.Millisecond, nil)

	want := []string{"start religion/reduce", "done religion/reduce", "method religion"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

type recordingHooks struct{ events []string }

func (r *recordingHooks) OnStageStart(_ context.Context, method, stage string) {
	r.events = append(r.events, "start "+method+"/"+stage)
}

func (r *recordingHooks) OnStageComplete(_ context.Context, method, stage string, _ int, _ time.Duration, _ error) {
	r.events = append(r.events, "done "+method+"/"+stage)
}

func (r *recordingHooks) OnMethodComplete(_ context.Context, method string, _ int, _ time.Duration, _ error) {
	r.events = append(r.events, "method "+method)
}

// Test implementations
type testPipelineHooks struct{ NoopPipelineHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
