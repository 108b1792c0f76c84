//go:build js && wasm

package main

import (
	"bytes"
	"syscall/js"
	"testing"

	"github.com/stretchr/testify/require"

	lc "lightcurve/pkg/lightcurve"
)

// jsFrames encodes n flat 16x16 frames with a source at (5,5) and (10,10).
func jsFrames(t *testing.T, n int) js.Value {
	t.Helper()
	arr := js.Global().Get("Array").New(n)
	for i := 0; i < n; i++ {
		px := make([]float32, 16*16)
		px[5*16+5] = 50
		px[10*16+10] = 10
		var buf bytes.Buffer
		require.NoError(t, lc.EncodeFits(&buf, px, 16, 16, nil))
		u8 := js.Global().Get("Uint8Array").New(buf.Len())
		js.CopyBytesToJS(u8, buf.Bytes())
		arr.SetIndex(i, u8)
	}
	return arr
}

func callLightCurve(frames js.Value, opts map[string]interface{}) js.Value {
	return lightCurve(js.Undefined(), []js.Value{frames, js.ValueOf(opts)}).(js.Value)
}

func TestLightCurve(t *testing.T) {
	res := callLightCurve(jsFrames(t, 2), map[string]interface{}{
		"target":     map[string]interface{}{"x": 5, "y": 5, "name": "V"},
		"references": []interface{}{map[string]interface{}{"x": 10, "y": 10}},
		"radius":     1,
	})
	require.Equal(t, js.TypeUndefined, res.Get("error").Type())
	require.Equal(t, 2, res.Get("frames").Int())
	require.InDelta(t, -1.7474, res.Get("target").Get("magnitude").Index(0).Float(), 1e-3)
}

func TestLightCurveRejectsMalformedStars(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"missing target": {
			"references": []interface{}{map[string]interface{}{"x": 1, "y": 1}},
		},
		"empty target": {
			"target":     map[string]interface{}{},
			"references": []interface{}{map[string]interface{}{"x": 1, "y": 1}},
		},
		"string coordinate": {
			"target":     map[string]interface{}{"x": "5", "y": 5},
			"references": []interface{}{map[string]interface{}{"x": 1, "y": 1}},
		},
		"reference without y": {
			"target":     map[string]interface{}{"x": 5, "y": 5},
			"references": []interface{}{map[string]interface{}{"x": 1}},
		},
		"references not an array": {
			"target":     map[string]interface{}{"x": 5, "y": 5},
			"references": 3,
		},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			var res js.Value
			require.NotPanics(t, func() { res = callLightCurve(jsFrames(t, 1), opts) })
			require.Equal(t, js.TypeString, res.Get("error").Type())
		})
	}
}

func TestLightCurveRejectsMalformedFrames(t *testing.T) {
	opts := map[string]interface{}{
		"target":     map[string]interface{}{"x": 5, "y": 5},
		"references": []interface{}{map[string]interface{}{"x": 1, "y": 1}},
	}
	for name, frames := range map[string]js.Value{
		"not an array":      js.ValueOf(7),
		"element not bytes": js.ValueOf([]interface{}{"abc"}),
	} {
		t.Run(name, func(t *testing.T) {
			var res js.Value
			require.NotPanics(t, func() { res = callLightCurve(frames, opts) })
			require.Equal(t, js.TypeString, res.Get("error").Type())
		})
	}
}
