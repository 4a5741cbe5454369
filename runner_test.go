package parley

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseArguments(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"nil", nil, map[string]any{}},
		{"map copied", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"json string", `{"city":"Jakarta"}`, map[string]any{"city": "Jakarta"}},
		{"raw message", json.RawMessage(`{"n":2}`), map[string]any{"n": float64(2)}},
		{"byte slice", []byte(`{"ok":true}`), map[string]any{"ok": true}},
		{"garbage string", "not json", map[string]any{}},
		{"json null string", "null", map[string]any{}},
		{"wrong type", 42, map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseArguments(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseArguments(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseArgumentsCopiesMap(t *testing.T) {
	orig := map[string]any{"a": 1}
	got := ParseArguments(orig)
	got["b"] = 2
	if _, ok := orig["b"]; ok {
		t.Error("mutation of parsed args leaked into the original map")
	}
}

func TestRunnerRegistrySanitizesNames(t *testing.T) {
	r := NewRunnerRegistry(map[string]ToolRunner{
		"get weather": RunnerFunc(func(context.Context, map[string]any) (any, error) {
			return "ok", nil
		}),
	})

	if r.Len() != 1 {
		t.Fatalf("Len = %d", r.Len())
	}
	// lookup by sanitized and by raw form both resolve
	if _, ok := r.Lookup("get_weather"); !ok {
		t.Error("sanitized lookup missed")
	}
	if _, ok := r.Lookup("get weather"); !ok {
		t.Error("raw lookup missed")
	}
	if _, ok := r.Lookup("unknown"); ok {
		t.Error("unknown name resolved")
	}
}

func TestRunnerRegistryReplaceAndNil(t *testing.T) {
	r := NewRunnerRegistry(nil)
	r.Register("t", RunnerFunc(func(context.Context, map[string]any) (any, error) {
		return "first", nil
	}))
	r.Register("t", RunnerFunc(func(context.Context, map[string]any) (any, error) {
		return "second", nil
	}))
	r.Register("ignored", nil)

	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	runner, _ := r.Lookup("t")
	got, _ := runner.Run(context.Background(), nil)
	if got != "second" {
		t.Errorf("got %v, want later registration to win", got)
	}
}

func TestContextInjectionRoundTrip(t *testing.T) {
	args := injectContext(map[string]any{"city": "Oslo"}, ToolContext{
		BusinessID: "b1", SessionID: "s1", UserID: "u1",
	})
	tc := ContextFromArgs(args)
	if tc.BusinessID != "b1" || tc.SessionID != "s1" || tc.UserID != "u1" {
		t.Errorf("round trip = %+v", tc)
	}
	if args["city"] != "Oslo" {
		t.Error("injection clobbered user args")
	}
}

func TestContextFromArgsMissing(t *testing.T) {
	if tc := ContextFromArgs(map[string]any{}); tc != (ToolContext{}) {
		t.Errorf("got %+v, want zero", tc)
	}
	if tc := ContextFromArgs(map[string]any{ContextArgKey: "wrong shape"}); tc != (ToolContext{}) {
		t.Errorf("got %+v, want zero", tc)
	}
}

func TestSafeRunPanicBecomesError(t *testing.T) {
	runner := RunnerFunc(func(context.Context, map[string]any) (any, error) {
		panic("tool bug")
	})
	result, err := safeRun(context.Background(), runner, nil)
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
	if err == nil || err.Error() != "tool panic: tool bug" {
		t.Errorf("err = %v", err)
	}
}

func TestSafeRunPassthrough(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, args map[string]any) (any, error) {
		return args["x"], nil
	})
	result, err := safeRun(context.Background(), runner, map[string]any{"x": "y"})
	if err != nil || result != "y" {
		t.Errorf("got (%v, %v)", result, err)
	}
}
