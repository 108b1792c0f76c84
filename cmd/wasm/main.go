//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"math"
	"syscall/js"

	lc "lightcurve/pkg/lightcurve"
)

var lastCurve *lc.Curve

func main() {
	js.Global().Set("lightCurve", js.FuncOf(lightCurve))
	js.Global().Set("renderChart", js.FuncOf(renderChart))
	select {} // block forever
}

// lightCurve(frames, options) measures an array of FITS buffers.
// options: {target: {x, y, name}, references: [{x, y, name}], radius, method, debayer}
func lightCurve(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || args[0].Type() != js.TypeObject || args[1].Type() != js.TypeObject {
		return errorResult("usage: lightCurve(frames, options)")
	}

	// Extract file bytes
	jsFrames := args[0]
	n, ok := jsLength(jsFrames)
	if !ok {
		return errorResult("frames must be an array of Uint8Array")
	}
	uint8Array := js.Global().Get("Uint8Array")
	buffers := make([][]byte, n)
	for i := 0; i < n; i++ {
		jsBytes := jsFrames.Index(i)
		if jsBytes.Type() != js.TypeObject || !jsBytes.InstanceOf(uint8Array) {
			return errorResult(fmt.Sprintf("frame %d is not a Uint8Array", i))
		}
		buf := make([]byte, jsBytes.Get("length").Int())
		js.CopyBytesToGo(buf, jsBytes)
		buffers[i] = buf
	}

	opts := args[1]
	debayer := false
	if v := opts.Get("debayer"); v.Type() == js.TypeBoolean {
		debayer = v.Bool()
	}
	radius := 8
	if v := opts.Get("radius"); v.Type() == js.TypeNumber {
		radius = v.Int()
	}
	methodName := ""
	if v := opts.Get("method"); v.Type() == js.TypeString {
		methodName = v.String()
	}
	method, err := lc.ParseMethod(methodName)
	if err != nil {
		return errorResult(err.Error())
	}

	target, targetName, err := starFromJS(opts.Get("target"))
	if err != nil {
		return errorResult("options.target: " + err.Error())
	}
	numRefs, ok := jsLength(opts.Get("references"))
	if !ok {
		return errorResult("options.references must be an array")
	}
	jsRefs := opts.Get("references")
	centers := make([]lc.Point2d, numRefs)
	names := make([]string, numRefs)
	for i := range centers {
		centers[i], names[i], err = starFromJS(jsRefs.Index(i))
		if err != nil {
			return errorResult(fmt.Sprintf("options.references[%d]: %v", i, err))
		}
	}

	ctx := context.Background()
	frames, err := (&lc.BytesSource{Buffers: buffers, Debayer: debayer}).Frames(ctx)
	if err != nil {
		return errorResult("FITS parse error: " + err.Error())
	}
	defer lc.CloseFrames(frames)

	engine := lc.New(frames)
	if err := engine.SetTarget(target, radius, targetName); err != nil {
		return errorResult(err.Error())
	}
	if err := engine.SetReference(centers, radius, names); err != nil {
		return errorResult(err.Error())
	}
	if err := engine.ReadApertures(ctx); err != nil {
		return errorResult("Photometry error: " + err.Error())
	}
	if err := engine.DifferentialMagnitude(method); err != nil {
		return errorResult(err.Error())
	}
	curve, err := engine.Curve()
	if err != nil {
		return errorResult(err.Error())
	}
	lastCurve = curve

	// Build JS result
	summary := lc.Summarize(curve.TargetMagnitude)
	jsResult := map[string]interface{}{
		"frames":       curve.Len(),
		"method":       string(curve.Method),
		"hasTimes":     curve.HasTimes,
		"target":       seriesToJS(curve.TargetLuminosity, curve.TargetMagnitude),
		"medianMag":    jsNumber(summary.Median),
		"scatter":      jsNumber(summary.Scatter),
		"undefinedMag": summary.Undefined,
	}
	if curve.HasTimes {
		times := make([]interface{}, len(curve.Times))
		for i, t := range curve.Times {
			times[i] = t
		}
		jsResult["times"] = times
	}
	jsRefResult := make([]interface{}, len(curve.References))
	for i, ref := range curve.References {
		s := seriesToJS(curve.ReferenceLuminosity[i], curve.ReferenceMagnitude[i])
		s["label"] = ref.Label(i)
		jsRefResult[i] = s
	}
	jsResult["references"] = jsRefResult

	return js.ValueOf(jsResult)
}

func renderChart(this js.Value, args []js.Value) interface{} {
	if lastCurve == nil {
		return js.Null()
	}
	width, height := 900, 600
	if len(args) >= 2 && args[0].Type() == js.TypeNumber && args[1].Type() == js.TypeNumber {
		width, height = args[0].Int(), args[1].Int()
	}

	jpegBytes, err := lc.RenderChartBytes(lastCurve, width, height)
	if err != nil {
		return js.Null()
	}

	// Create Uint8Array and copy bytes
	uint8Array := js.Global().Get("Uint8Array").New(len(jpegBytes))
	js.CopyBytesToJS(uint8Array, jpegBytes)
	return uint8Array
}

// starFromJS reads {x, y, name}; x and y must be numbers.
func starFromJS(v js.Value) (lc.Point2d, string, error) {
	if v.Type() != js.TypeObject {
		return lc.Point2d{}, "", fmt.Errorf("%w: star must be an object {x, y}", lc.ErrInvalidConfig)
	}
	x, y := v.Get("x"), v.Get("y")
	if x.Type() != js.TypeNumber || y.Type() != js.TypeNumber {
		return lc.Point2d{}, "", fmt.Errorf("%w: star x and y must be numbers", lc.ErrInvalidConfig)
	}
	name := ""
	if n := v.Get("name"); n.Type() == js.TypeString {
		name = n.String()
	}
	return lc.Point2d{X: x.Float(), Y: y.Float()}, name, nil
}

// jsLength returns the length of an array-like object.
func jsLength(v js.Value) (int, bool) {
	if v.Type() != js.TypeObject {
		return 0, false
	}
	l := v.Get("length")
	if l.Type() != js.TypeNumber || l.Float() < 0 {
		return 0, false
	}
	return l.Int(), true
}

// seriesToJS uses null for undefined magnitudes.
func seriesToJS(lum []float64, mag []lc.Magnitude) map[string]interface{} {
	jsLum := make([]interface{}, len(lum))
	jsMag := make([]interface{}, len(mag))
	for i := range lum {
		jsLum[i] = lum[i]
		if mag[i].Defined {
			jsMag[i] = mag[i].Value
		} else {
			jsMag[i] = nil
		}
	}
	return map[string]interface{}{
		"luminosity": jsLum,
		"magnitude":  jsMag,
	}
}

func jsNumber(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
