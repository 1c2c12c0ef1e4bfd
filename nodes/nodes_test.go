package nodes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"comfynodes/envelope"
	"comfynodes/fileio"
	"comfynodes/imgio"
	"comfynodes/settings"
	"comfynodes/store"
	"comfynodes/webui"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// quadrants returns a 4x2 image with a red left half and a blue right half.
func quadrants() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func tensorOf(t *testing.T, result Output, i int) *imgio.Tensor {
	t.Helper()
	tensor, ok := result.Values[i].(*imgio.Tensor)
	if !ok {
		t.Fatalf("value %d is %T, want *imgio.Tensor", i, result.Values[i])
	}
	return tensor
}

func TestResizeNodes(t *testing.T) {
	env := testEnv(t)
	tests := []struct {
		node string
		args Args
		want []int
	}{
		{"ResizeImageNode", Args{"width": 8, "height": 6}, []int{1, 6, 8, 3}},
		{"ResizeImageNode", Args{"width": 2, "height": 2, "method": "LANCZOS"}, []int{1, 2, 2, 3}},
		{"ResizeScaleImageNode", Args{"scale": 2.0}, []int{1, 4, 8, 3}},
		{"ResizeShortestToNode", Args{"size": 4}, []int{1, 4, 8, 3}},
		{"ResizeLongestToNode", Args{"size": 8, "method": "BICUBIC"}, []int{1, 4, 8, 3}},
		{"ResizeImageResolution", Args{"resolution": 256}, []int{1, 181, 362, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			tt.args["image"] = quadrants()
			tensor := tensorOf(t, invoke(t, env, tt.node, tt.args), 0)
			if !slices.Equal(tensor.Shape, tt.want) {
				t.Fatalf("shape = %v, want %v", tensor.Shape, tt.want)
			}
		})
	}

	err := invokeErr(t, env, "ResizeScaleImageNode", Args{"image": quadrants(), "scale": 0.1})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("resize to zero size error = %v", err)
	}
}

func TestResizeKeepsBatch(t *testing.T) {
	batch := imgio.NewTensor([]int{2, 1, 2, 3}, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 1, 1, 1})
	tensor := tensorOf(t, invoke(t, testEnv(t), "ResizeImageNode", Args{"image": batch, "width": 4, "height": 2}), 0)
	if !slices.Equal(tensor.Shape, []int{2, 2, 4, 3}) {
		t.Fatalf("shape = %v", tensor.Shape)
	}
}

func TestRotateImageNode(t *testing.T) {
	tensor := tensorOf(t, invoke(t, testEnv(t), "RotateImageNode", Args{"image": quadrants(), "angle": 180}), 0)
	if !slices.Equal(tensor.Shape, []int{1, 2, 4, 3}) {
		t.Fatalf("shape = %v", tensor.Shape)
	}
	// after a half turn the top left pixel comes from the blue half
	if got := tensor.Data[:3]; !slices.Equal(got, []float32{0, 0, 1}) {
		t.Fatalf("top left = %v, want blue", got)
	}
}

func TestColorNodes(t *testing.T) {
	env := testEnv(t)

	grey := tensorOf(t, invoke(t, env, "ConvertGreyscaleNode", Args{"image": quadrants()}), 0)
	for i := 0; i < len(grey.Data); i += 3 {
		if grey.Data[i] != grey.Data[i+1] || grey.Data[i] != grey.Data[i+2] {
			t.Fatalf("pixel %d = %v, channels differ", i/3, grey.Data[i:i+3])
		}
	}

	black := tensorOf(t, invoke(t, env, "BrightnessNode", Args{"image": quadrants(), "factor": 0.0}), 0)
	for _, v := range black.Data {
		if v != 0 {
			t.Fatal("brightness 0 did not produce a black image")
		}
	}

	same := tensorOf(t, invoke(t, env, "ColorNode", Args{"image": quadrants()}), 0)
	want := imgio.ImageToTensor(imgio.Normalize(quadrants(), false))
	if !slices.Equal(same.Data, want.Data) {
		t.Fatal("color factor 1 changed the image")
	}

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 200, B: 128, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 129, G: 0, B: 255, A: 255})
	cut := tensorOf(t, invoke(t, env, "ThresholdNode", Args{"image": img}), 0)
	if !slices.Equal(cut.Data, []float32{0, 1, 0, 1, 0, 1}) {
		t.Fatalf("threshold = %v", cut.Data)
	}
}

func TestSaveImageCustomNode(t *testing.T) {
	env := testEnv(t)
	batch := imgio.NewTensor([]int{2, 1, 1, 3}, []float32{1, 0, 0, 0, 1, 0})

	result := invoke(t, env, "SaveImageCustomNode", Args{"images": batch, "subfolder_dir": "birds", "compress_level": 9})
	dir := filepath.Join(env.Config.Output.Directory, "birds")
	for _, name := range []string{"ComfyUI_00001_.png", "ComfyUI_00002_.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if result.Values[0] != filepath.Join(dir, "ComfyUI_00002_.png") {
		t.Fatalf("filename = %v", result.Values[0])
	}
	files := result.UI["images"].([]map[string]any)
	if len(files) != 2 || files[0]["subfolder"] != "birds" || files[0]["type"] != "output" {
		t.Fatalf("ui = %#v", result.UI)
	}

	again := invoke(t, env, "SaveImageWebpCustomNode", Args{"images": batch, "subfolder_dir": "birds"})
	if filepath.Base(again.Values[0].(string)) != "ComfyUI_00002_.webp" {
		t.Fatalf("webp filename = %v", again.Values[0])
	}

	for _, args := range []Args{
		{"images": batch, "subfolder_dir": "../escape"},
		{"images": batch, "filename_prefix": "/abs/name"},
	} {
		if err := invokeErr(t, env, "SaveImageCustomNode", args); !errors.Is(err, fileio.ErrUnsafePath) {
			t.Fatalf("unsafe target error = %v", err)
		}
	}
}

func TestSaveTextCustomNode(t *testing.T) {
	env := testEnv(t)
	result := invoke(t, env, "SaveTextCustomNode", Args{"text": "a small bird", "filename_prefix": "log_", "filename": "note"})

	path := filepath.Join(env.Config.Output.Directory, "log_note.txt")
	if result.Values[0] != path {
		t.Fatalf("path = %v, want %s", result.Values[0], path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "a small bird" {
		t.Fatalf("content = %q, %v", data, err)
	}

	if err := invokeErr(t, env, "SaveTextCustomNode", Args{"text": "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty filename error = %v", err)
	}
}

func TestCommaRejoin(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a,b ,  c", "a, b, c"},
		{" , a,,b, ", "a, b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := invoke(t, nil, "CommaRejoinNode", Args{"text": tt.in}).Values[0]; got != tt.want {
			t.Errorf("rejoin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRandomImageFromFolderNode(t *testing.T) {
	env := testEnv(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), quadrants())
	writePNG(t, filepath.Join(dir, "b.png"), quadrants())
	if err := os.WriteFile(filepath.Join(dir, "fake.png"), []byte("not an image at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "nested", "c.png"), quadrants())

	seen := map[string]bool{}
	for seed := 0; seed < 20; seed++ {
		result := invoke(t, env, "RandomImageFromFolderNode", Args{"folder": dir, "seed": seed})
		path := result.Values[1].(string)
		seen[filepath.Base(path)] = true
		if !slices.Equal(tensorOf(t, result, 0).Shape, []int{1, 2, 4, 3}) {
			t.Fatalf("shape = %v", tensorOf(t, result, 0).Shape)
		}
		if again := invoke(t, env, "RandomImageFromFolderNode", Args{"folder": dir, "seed": seed}); again.Values[1] != path {
			t.Fatalf("seed %d picked %v then %v", seed, path, again.Values[1])
		}
	}
	if seen["fake.png"] || seen["c.png"] {
		t.Fatalf("picked files = %v", seen)
	}

	recursive := invoke(t, env, "RandomImageFromFolderNode", Args{"folder": dir, "recursive": true, "extensions": "png"})
	if _, err := os.Stat(recursive.Values[1].(string)); err != nil {
		t.Fatal(err)
	}

	err := invokeErr(t, env, "RandomImageFromFolderNode", Args{"folder": dir, "extensions": "gif"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty folder error = %v", err)
	}
}

func TestMiscNodes(t *testing.T) {
	env := testEnv(t)

	if got := invoke(t, env, "SleepNodeAny", Args{"inputs": "tunnel"}).Values[0]; got != "tunnel" {
		t.Fatalf("sleep passthrough = %v", got)
	}

	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Invoke(ctx, env, "SleepNodeImage", Args{"interval": 10, "image": 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled sleep error = %v", err)
	}

	if err := invokeErr(t, env, "ErrorNode", Args{"error_msg": "boom"}); err == nil || err.Error() != "Error: boom" {
		t.Fatalf("ErrorNode error = %v", err)
	}

	preview := invoke(t, env, "TextPreviewNode", Args{"text": 42})
	if len(preview.Values) != 0 || !reflect.DeepEqual(preview.UI["text"], []string{"42"}) {
		t.Fatalf("preview = %#v", preview)
	}

	if got := invoke(t, env, "DebugComboInputNode", Args{"input1": "2"}).Values[0]; got != "2" {
		t.Fatalf("combo = %v", got)
	}
}

func TestGlobalVarNodes(t *testing.T) {
	chdirTemp(t)
	env := testEnv(t)
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	run := func(name string, args Args) any {
		t.Helper()
		result, err := r.Invoke(context.Background(), env, name, args)
		if err != nil {
			t.Fatalf("%s error = %v", name, err)
		}
		return result.Values[0]
	}

	run("GlobalVarSetNode", Args{"key": "bird", "value": "wren"})
	run("GlobalVarSetIfNotExistsNode", Args{"key": "bird", "value": "robin"})
	if got := run("GlobalVarGetNode", Args{"key": "bird"}); got != "wren" {
		t.Fatalf("get = %v, want wren", got)
	}

	run("GlobalVarSetNode", Args{"key": "flock", "value": map[string]any{"size": 3}})
	if got := run("GlobalVarSaveNode", Args{"key": "flock", "filepath": "vars/flock.json"}); got != "vars/flock.json" {
		t.Fatalf("save = %v", got)
	}
	loaded := run("GlobalVarLoadNode", Args{"key": "copy", "filepath": "vars/flock.json"})
	if !reflect.DeepEqual(loaded, map[string]any{"size": 3.0}) {
		t.Fatalf("load = %#v", loaded)
	}

	if got := run("GlobalVarRemoveNode", Args{"key": "bird"}); got != "wren" {
		t.Fatalf("remove = %v", got)
	}
	if got := run("GlobalVarGetNode", Args{"key": "bird"}); got != nil {
		t.Fatalf("get after remove = %v", got)
	}

	if _, err := r.Invoke(context.Background(), env, "GlobalVarSaveNode", Args{"key": "bird"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("save missing key error = %v", err)
	}
	if got := run("GlobalVarSaveNode", Args{"key": "bird", "filepath": "null.json", "allow_missing": true}); got != "null.json" {
		t.Fatalf("save allow missing = %v", got)
	}
	if _, err := r.Invoke(context.Background(), env, "GlobalVarLoadNode", Args{"key": "x", "filepath": "../up.json"}); !errors.Is(err, fileio.ErrUnsafePath) {
		t.Fatalf("load outside working directory error = %v", err)
	}
}

func TestGlobalVarArchiveNodes(t *testing.T) {
	env := testEnv(t)
	if err := invokeErr(t, env, "GlobalVarPersistNode", Args{"key": "k"}); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("persist without archive error = %v", err)
	}

	archive, err := store.OpenArchive(settings.StoreConfig{
		ArchivePath:  filepath.Join(t.TempDir(), "archive"),
		MaxValueSize: 1 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	env.Archive = archive

	env.Store.Set("k", []any{"a", 1.5})
	if got := invoke(t, env, "GlobalVarPersistNode", Args{"key": "k"}).Values[0]; got != "k" {
		t.Fatalf("persist = %v", got)
	}

	env.Store = store.New()
	restored := invoke(t, env, "GlobalVarRestoreNode", Args{"key": "k"}).Values[0]
	if !reflect.DeepEqual(restored, []any{"a", 1.5}) {
		t.Fatalf("restore = %#v", restored)
	}
	if v, ok := env.Store.Get("k"); !ok || !reflect.DeepEqual(v, restored) {
		t.Fatalf("store after restore = %v, %v", v, ok)
	}
}

func TestJSONNodes(t *testing.T) {
	parsed := invoke(t, nil, "JsonParseNode", Args{"json_string": `{"a": [1, "b"]}`}).Values[0]
	if !reflect.DeepEqual(parsed, map[string]any{"a": []any{1.0, "b"}}) {
		t.Fatalf("parse = %#v", parsed)
	}
	if err := invokeErr(t, nil, "JsonParseNode", Args{"json_string": "{"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("parse error = %v", err)
	}

	tests := []struct {
		indent int
		want   string
	}{
		{0, `{"a":"<b>"}`},
		{2, "{\n  \"a\": \"<b>\"\n}"},
	}
	for _, tt := range tests {
		got := invoke(t, nil, "JsonDumpNode", Args{"py_obj": map[string]any{"a": "<b>"}, "indent": tt.indent}).Values[0]
		if got != tt.want {
			t.Errorf("dump indent %d = %q, want %q", tt.indent, got, tt.want)
		}
	}
}

func TestConversionNodes(t *testing.T) {
	tests := []struct {
		node string
		in   any
		want any
	}{
		{"Int2Float", 3, 3.0},
		{"Int2Bool", 0, false},
		{"Int2String", -12, "-12"},
		{"Float2Int", 2.9, int64(2)},
		{"Float2Int", -2.9, int64(-2)},
		{"Float2String", 2.0, "2.0"},
		{"Float2String", 0.25, "0.25"},
		{"Bool2Int", true, int64(1)},
		{"Bool2String", true, "true"},
		{"String2Int", " 42 ", int64(42)},
		{"String2Float", "1e3", 1000.0},
		{"String2Bool", "", false},
		{"String2Bool", "False", true},
	}
	for _, tt := range tests {
		got := invoke(t, nil, tt.node, Args{"input1": tt.in}).Values[0]
		if got != tt.want {
			t.Errorf("%s(%v) = %#v, want %#v", tt.node, tt.in, got, tt.want)
		}
	}

	if err := invokeErr(t, nil, "String2Int", Args{"input1": "4.5"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("String2Int error = %v", err)
	}
}

func TestLogicNodes(t *testing.T) {
	tests := []struct {
		node string
		args Args
		want any
	}{
		{"LogicGateCompareFloat", Args{"input1": 2.5, "input2": 1.0}, 1.0},
		{"LogicGateCompareInt", Args{"input1": 1, "input2": 1}, int64(0)},
		{"LogicGateCompareString", Args{"regex": "b.rd", "input2": "a bird"}, int64(1)},
		{"LogicGateCompareString", Args{"regex": "^x", "input2": "a bird"}, int64(0)},
		{"LogicGateEitherInt", Args{"condition": 1, "input1": 5, "input2": 6}, int64(5)},
		{"LogicGateEitherString", Args{"input1": "a", "input2": "b"}, "b"},
		{"LogicGateAndFloat", Args{"input1": 0.5, "input2": 0.0}, int64(0)},
		{"LogicGateOrInt", Args{"input1": 0, "input2": 3}, int64(1)},
		{"AddInt", Args{"input1": 2, "input2": 3}, int64(5)},
		{"AddFloat", Args{"input1": 0.5, "input2": 0.25}, 0.75},
		{"MergeString", Args{"input1": "wr", "input2": "en"}, "wren"},
		{"StaticNumberInt", Args{"number": 7}, int64(7)},
	}
	for _, tt := range tests {
		if got := invoke(t, nil, tt.node, tt.args).Values[0]; got != tt.want {
			t.Errorf("%s(%v) = %#v, want %#v", tt.node, tt.args, got, tt.want)
		}
	}

	if err := invokeErr(t, nil, "LogicGateCompareString", Args{"regex": "(", "input2": ""}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad regex error = %v", err)
	}
}

func TestMathNodes(t *testing.T) {
	tests := []struct {
		node string
		args Args
		want any
	}{
		{"MinNode", Args{"input1": 3, "input2": 2}, int64(2)},
		{"MaxNode", Args{"input1": 3, "input2": 2.5}, 3.0},
		{"RoundNode", Args{"input1": 2.5}, int64(2)},
		{"RoundNode", Args{"input1": 3.5}, int64(4)},
		{"AbsNode", Args{"input1": -3}, int64(3)},
		{"AbsNode", Args{"input1": -0.5}, 0.5},
		{"FloorNode", Args{"input1": -1.5}, int64(-2)},
		{"CeilNode", Args{"input1": 1.2}, int64(2)},
		{"PowerNode", Args{"input1": 2, "power": 10}, 1024.0},
		{"SigmoidNode", Args{"input1": 0.0}, 0.5},
		{"RAMPNode", Args{"input1": -4.0}, 0.0},
		{"ModuloNode", Args{"input1": -7, "modulo": 3}, int64(2)},
		{"ModuloNode", Args{"input1": 7, "modulo": -3}, int64(-2)},
		{"MultiplyNode", Args{"input1": 6, "input2": 7}, int64(42)},
		{"DivideNode", Args{"input1": 1, "input2": 4}, 0.25},
		{"IsPrimeNode", Args{"value": 97}, true},
		{"IsPrimeNode", Args{"value": 91}, false},
	}
	for _, tt := range tests {
		if got := invoke(t, nil, tt.node, tt.args).Values[0]; got != tt.want {
			t.Errorf("%s(%v) = %#v, want %#v", tt.node, tt.args, got, tt.want)
		}
	}

	if got := invoke(t, nil, "LogNode", Args{"input1": 8.0, "base": 2.0}).Values[0].(float64); math.Abs(got-3) > 1e-12 {
		t.Fatalf("log2(8) = %v", got)
	}

	errTests := []struct {
		node string
		args Args
		want error
	}{
		{"DivideNode", Args{"input1": 1, "input2": 0}, ErrDivisionByZero},
		{"ModuloNode", Args{"input1": 1, "modulo": 0}, ErrDivisionByZero},
		{"PowerNode", Args{"input1": 10, "power": 200}, ErrOverflow},
		{"PowerNode", Args{"input1": 0, "power": -1}, ErrDivisionByZero},
		{"RoundNode", Args{"input1": 1e300}, ErrOverflow},
		{"LogNode", Args{"input1": -1.0}, ErrInvalidInput},
		{"MinNode", Args{"input1": "a", "input2": 1}, ErrInvalidInput},
		{"MinNode", Args{"input1": 1}, ErrMissingInput},
	}
	for _, tt := range errTests {
		if err := invokeErr(t, nil, tt.node, tt.args); !errors.Is(err, tt.want) {
			t.Errorf("%s(%v) error = %v, want %v", tt.node, tt.args, err, tt.want)
		}
	}
}

func TestIsPrime(t *testing.T) {
	tests := []struct {
		n, threshold int64
		want         bool
	}{
		{-7, 100, false},
		{1, 100, false},
		{2, 100, true},
		{25, 100, false},
		{7919, 100_000, true},
		{561, 2, false},
		{1_000_000_007, 10, true},
		{1_000_000_007 * 3, 10, false},
	}
	for _, tt := range tests {
		if got := IsPrime(tt.n, tt.threshold, 20); got != tt.want {
			t.Errorf("IsPrime(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSeededRandomNodes(t *testing.T) {
	tests := []struct {
		node string
		args Args
	}{
		{"UniformRandomInt", Args{"min_val": -5, "max_val": 5, "seed": 11}},
		{"UniformRandomFloat", Args{"min_val": 0.0, "max_val": 10.0, "decimal_places": 2, "seed": 11}},
		{"UniformRandomChoice", Args{"input_string": "a$b$c$d", "seed": 11}},
		{"RandomShuffleString", Args{"input_string": "a$b$c$d", "seed": 11}},
		{"DimensionSelectorWithSeedNode", Args{"seed": 11}},
	}
	for _, tt := range tests {
		first := invoke(t, nil, tt.node, tt.args)
		second := invoke(t, nil, tt.node, tt.args)
		if !reflect.DeepEqual(first.Values, second.Values) {
			t.Errorf("%s is not deterministic: %v then %v", tt.node, first.Values, second.Values)
		}
	}

	for seed := 0; seed < 50; seed++ {
		v := invoke(t, nil, "UniformRandomInt", Args{"min_val": -5, "max_val": 5, "seed": seed}).Values[0].(int64)
		if v < -5 || v > 5 {
			t.Fatalf("seed %d gave %d outside [-5, 5]", seed, v)
		}
	}

	shuffled := invoke(t, nil, "RandomShuffleInt", Args{"input_string": "1$2$3$4", "seed": 3}).Values[0].([]string)
	sorted := slices.Clone(shuffled)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"1", "2", "3", "4"}) {
		t.Fatalf("shuffle lost elements: %v", shuffled)
	}

	if got := invoke(t, nil, "UniformRandomFloat", Args{"min_val": 2.0, "max_val": 1.0}).Values[0]; got != 2.0 {
		t.Fatalf("empty float range = %v", got)
	}
	if got := invoke(t, nil, "UniformRandomInt", Args{"min_val": 9, "max_val": 1}).Values[0]; got != int64(9) {
		t.Fatalf("empty int range = %v", got)
	}
}

func TestManualChoiceNodes(t *testing.T) {
	tests := []struct {
		node string
		args Args
		want any
	}{
		{"ManualChoiceString", Args{"input_string": "x|y|z", "separator": "|", "index": 2}, "z"},
		{"ManualChoiceInt", Args{"input_string": "1$ 2$3", "index": 1}, int64(2)},
		{"ManualChoiceFloat", Args{"index": 0}, 1.0},
	}
	for _, tt := range tests {
		if got := invoke(t, nil, tt.node, tt.args).Values[0]; got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.node, got, tt.want)
		}
	}

	for _, args := range []Args{
		{"index": 3},
		{"input_string": "1$two", "index": 1},
	} {
		if err := invokeErr(t, nil, "ManualChoiceInt", args); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ManualChoiceInt(%v) error = %v", args, err)
		}
	}
}

func TestSystemRandomNodes(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := invoke(t, nil, "SystemRandomInt", Args{"min_val": 3, "max_val": 4}).Values[0].(int64)
		if v < 3 || v > 4 {
			t.Fatalf("SystemRandomInt = %d", v)
		}
		f := invoke(t, nil, "SystemRandomFloat", Args{"min_val": 1.0, "max_val": 2.0, "precision": 2}).Values[0].(float64)
		if f < 1 || f > 2 || math.Abs(f*100-math.Round(f*100)) > 1e-9 {
			t.Fatalf("SystemRandomFloat = %v", f)
		}
	}
	if err := invokeErr(t, nil, "SystemRandomInt", Args{"min_val": 5, "max_val": 4}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SystemRandomInt empty range error = %v", err)
	}

	for _, length := range []int{1, 8, 36} {
		if got := invoke(t, nil, "UUIDGenerator", Args{"length": length}).Values[0].(string); len(got) != length {
			t.Errorf("uuid %q has length %d, want %d", got, len(got), length)
		}
	}
}

func TestDimensions(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		w, h, err := Dimensions(1024, 0.6, 1.6, 32, seed)
		if err != nil {
			t.Fatal(err)
		}
		if w <= 0 || h <= 0 || w%32 != 0 || h%32 != 0 {
			t.Fatalf("seed %d gave %dx%d", seed, w, h)
		}
		if ratio := float64(w) / float64(h); ratio < 0.5 || ratio > 1.8 {
			t.Fatalf("seed %d gave ratio %v", seed, ratio)
		}
	}

	for _, tc := range []struct {
		resolution, step int64
		lo, hi           float64
	}{
		{0, 32, 0.6, 1.6},
		{1024, 0, 0.6, 1.6},
		{1024, 32, 1.6, 0.6},
		{1024, 32, 0, 1},
	} {
		if _, _, err := Dimensions(tc.resolution, tc.lo, tc.hi, tc.step, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Dimensions(%+v) error = %v", tc, err)
		}
	}
}

func TestSecureNodesRoundTrip(t *testing.T) {
	env := testEnv(t)
	priv, pub, err := envelope.GenerateKeyPair(1024)
	if err != nil {
		t.Fatal(err)
	}

	sealed := invoke(t, env, "SecureBase64Encrypt", Args{"images": quadrants(), "public_key_pem": pub}).Values[0].(string)
	if sealed == "" {
		t.Fatal("empty envelope")
	}

	tensor := tensorOf(t, invoke(t, env, "SecureWebPDecrypt", Args{"encrypted_base64": []any{sealed}, "private_key_pem": priv}), 0)
	want := imgio.ImageToTensor(imgio.Normalize(quadrants(), false))
	if !slices.Equal(tensor.Shape, want.Shape) {
		t.Fatalf("decrypted shape %v, want %v", tensor.Shape, want.Shape)
	}
	for i := range want.Data {
		if math.Abs(float64(tensor.Data[i]-want.Data[i])) > 1.0/255 {
			t.Fatalf("sample %d = %v, want %v", i, tensor.Data[i], want.Data[i])
		}
	}

	if err := invokeErr(t, env, "SecureBase64Encrypt", Args{"images": quadrants(), "public_key_pem": "nope"}); err == nil {
		t.Fatal("encrypting with a malformed key succeeded")
	}
}

func TestWebUINodes(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, quadrants()); err != nil {
		t.Fatal(err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var got webui.Params
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(webui.Response{Images: []string{encoded}})
	}))
	defer srv.Close()

	env := testEnv(t)
	result := invoke(t, env, "SDWebuiAPINode", Args{"prompt": "a wren", "api_endpoint": srv.URL, "steps": 12})
	if shape := tensorOf(t, result, 0).Shape; !slices.Equal(shape, []int{1, 2, 4, 3}) {
		t.Fatalf("shape = %v", shape)
	}
	if got.Prompt != "a wren" || got.Steps != 12 || got.Width != 1024 || got.HrUpscaler != "Latent" {
		t.Fatalf("request params = %+v", got)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer broken.Close()

	args := Args{"prompt": "a wren", "api_endpoint": broken.URL, "width": 16, "height": 8}
	if err := invokeErr(t, env, "SDWebuiAPINode", args); err == nil {
		t.Fatal("SDWebuiAPINode ignored a server error")
	}
	blank := tensorOf(t, invoke(t, env, "SDWebuiAPIFallbackNode", args), 0)
	if !slices.Equal(blank.Shape, []int{1, 8, 16, 3}) {
		t.Fatalf("fallback shape = %v", blank.Shape)
	}
	for _, v := range blank.Data {
		if v != 1 {
			t.Fatal("fallback image is not white")
		}
	}
}

type stubTagger struct {
	threshold float64
}

func (s *stubTagger) Tag(ctx context.Context, img *imgio.Image, threshold float64, replace bool) (*Tags, error) {
	s.threshold = threshold
	return &Tags{Rating: "general", General: []string{"bird", "branch"}, Characters: []string{"wren"}}, nil
}

func TestTaggerNodes(t *testing.T) {
	env := testEnv(t)
	if err := invokeErr(t, env, "GetRatingNode", Args{"image": quadrants()}); !errors.Is(err, ErrTaggerUnavailable) {
		t.Fatalf("no tagger error = %v", err)
	}

	tagger := &stubTagger{}
	env.Tagger = tagger
	tests := []struct {
		node string
		want string
	}{
		{"GetRatingNode", "general"},
		{"GetTagsAboveThresholdNode", "bird, branch"},
		{"GetCharactersAboveThresholdNode", "wren"},
		{"GetAllTagsAboveThresholdNode", "general, bird, branch, wren"},
	}
	for _, tt := range tests {
		if got := invoke(t, env, tt.node, Args{"image": quadrants(), "threshold": 0.7}).Values[0]; got != tt.want {
			t.Errorf("%s = %q, want %q", tt.node, got, tt.want)
		}
	}
	if tagger.threshold != 0.7 {
		t.Fatalf("threshold passed = %v", tagger.threshold)
	}

	path := filepath.Join(t.TempDir(), "bird.png")
	writePNG(t, path, quadrants())
	if got := invoke(t, env, "GetRatingFromTextNode", Args{"image": path}).Values[0]; got != "general" {
		t.Fatalf("from text = %v", got)
	}
}
