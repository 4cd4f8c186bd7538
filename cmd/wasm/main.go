//go:build js && wasm

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"syscall/js"

	"github.com/MeKo-Tech/grainmatch/internal/grain"
	"github.com/MeKo-Tech/grainmatch/internal/iso"
)

// GenerateRequest is a grain preview request from JS.
type GenerateRequest struct {
	ISO    string `json:"iso"`
	Seed   any    `json:"seed"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pass   string `json:"pass"`
}

func errorResult(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// generate renders a grain field and returns its channel statistics along
// with a PNG data URL of the requested pass ("luma" or "color").
func generate(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("missing arguments")
	}

	var req GenerateRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult("failed to parse request: %v", err)
	}
	if req.Seed == nil {
		req.Seed = 1
	}
	if err := grain.CheckPreviewSize(req.Width, req.Height, grain.MaxPreviewDimension); err != nil {
		return errorResult("%v", err)
	}

	field, err := grain.Generate(req.ISO, req.Seed, req.Width, req.Height)
	if err != nil {
		return errorResult("failed to generate grain: %v", err)
	}

	result := map[string]any{
		"width":       field.Width(),
		"height":      field.Height(),
		"size":        field.Size,
		"roughness":   field.Roughness,
		"chroma_bias": field.ChromaBias,
		"luma":        grain.MeanAbs(field.Luma),
		"red":         grain.MeanAbs(field.Red),
		"green":       grain.MeanAbs(field.Green),
		"blue":        grain.MeanAbs(field.Blue),
	}

	var buf bytes.Buffer
	if req.Pass == "color" {
		err = png.Encode(&buf, field.ColorImage(1))
	} else {
		err = png.Encode(&buf, field.LumaImage(1))
	}
	if err != nil {
		return errorResult("failed to encode png: %v", err)
	}
	result["image"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return result
}

// presets returns the ISO table as a JSON string.
func presets(this js.Value, args []js.Value) any {
	data, err := json.Marshal(iso.Presets())
	if err != nil {
		return errorResult("failed to encode presets: %v", err)
	}
	return string(data)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("grainmatchGenerate", js.FuncOf(generate))
	js.Global().Set("grainmatchPresets", js.FuncOf(presets))

	fmt.Println("GrainMatch WASM module loaded")
	<-c
}
