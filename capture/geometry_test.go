package capture

import (
	"errors"
	"image"
	"testing"
)

func TestResolutionValue(t *testing.T) {
	w, h := Resolution720p.Value(16.0 / 9.0)
	if w != 1280 || h != 720 {
		t.Fatalf("720p at 16:9 = %dx%d, want 1280x720", w, h)
	}
	w, h = Resolution1080p.Value(4.0 / 3.0)
	if w != 1920 || h != 1440 {
		t.Fatalf("1080p at 4:3 = %dx%d, want 1920x1440", w, h)
	}
}

func TestResolutionValuePanicsForCaptured(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Value on ResolutionCaptured should panic")
		}
	}()
	ResolutionCaptured.Value(1)
}

func TestParseResolution(t *testing.T) {
	for _, r := range []Resolution{ResolutionCaptured, Resolution480p, Resolution1440p, Resolution4320p} {
		got, err := ParseResolution(r.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != r {
			t.Fatalf("ParseResolution(%q) = %v", r.String(), got)
		}
	}
	if got, _ := ParseResolution(" 720P "); got != Resolution720p {
		t.Fatalf("ParseResolution is not case insensitive: %v", got)
	}
	if got, _ := ParseResolution(""); got != ResolutionCaptured {
		t.Fatalf("empty resolution = %v, want captured", got)
	}
	if _, err := ParseResolution("8k"); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("ParseResolution(8k) err = %v", err)
	}
}

func TestResolveCropAreaRoundsUpToEven(t *testing.T) {
	opts := Options{CropArea: &Area{Origin: Point{X: 10, Y: 20}, Size: Size{Width: 101, Height: 51.5}}}
	got := resolveCropArea(opts, Size{Width: 1920, Height: 1080}, 1, false)
	want := Area{Origin: Point{X: 10, Y: 20}, Size: Size{Width: 102, Height: 52}}
	if got != want {
		t.Fatalf("crop = %+v, want %+v", got, want)
	}
}

func TestResolveCropAreaDefaultsToTarget(t *testing.T) {
	got := resolveCropArea(Options{}, Size{Width: 1440, Height: 900}, 2, true)
	want := Area{Size: Size{Width: 2880, Height: 1800}}
	if got != want {
		t.Fatalf("crop = %+v, want %+v", got, want)
	}
}

func TestResolveOutputSize(t *testing.T) {
	tests := []struct {
		name  string
		res   Resolution
		crop  Size
		scale float64
		wantW uint32
		wantH uint32
	}{
		{"retina clamped to 720p", Resolution720p, Size{2000, 1000}, 2, 1280, 640},
		{"captured keeps pixels", ResolutionCaptured, Size{1440, 900}, 2, 2880, 1800},
		{"never upscales", Resolution2160p, Size{800, 600}, 1, 800, 600},
		{"odd pixels become even", ResolutionCaptured, Size{801, 601}, 1, 800, 600},
		{"zero scale treated as one", ResolutionCaptured, Size{640, 480}, 0, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{OutputResolution: tt.res}
			w, h := resolveOutputSize(opts, Area{Size: tt.crop}, tt.scale)
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("output = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if w%2 != 0 || h%2 != 0 {
				t.Fatalf("output %dx%d is not even", w, h)
			}
		})
	}
}

func TestGeometryPixelCrop(t *testing.T) {
	opts := Options{CropArea: &Area{Origin: Point{X: 100, Y: 50}, Size: Size{Width: 200, Height: 100}}}
	g := resolveGeometry(opts, Size{Width: 1440, Height: 900}, 2)

	got := g.pixelCrop(image.Rect(0, 0, 2880, 1800))
	if want := image.Rect(200, 100, 600, 300); got != want {
		t.Fatalf("pixelCrop = %v, want %v", got, want)
	}
	if w, h := g.outputSize(); w != 400 || h != 200 {
		t.Fatalf("outputSize = %dx%d, want 400x200", w, h)
	}

	clipped := g.pixelCrop(image.Rect(0, 0, 300, 200))
	if want := image.Rect(200, 100, 300, 200); clipped != want {
		t.Fatalf("clipped pixelCrop = %v, want %v", clipped, want)
	}
}

func TestCheckCrop(t *testing.T) {
	native := Size{Width: 1920, Height: 1080}
	inside := Options{CropArea: &Area{Origin: Point{X: 1000, Y: 500}, Size: Size{Width: 920, Height: 580}}}
	if err := checkCrop(inside, resolveGeometry(inside, native, 1)); err != nil {
		t.Fatalf("crop inside target rejected: %v", err)
	}

	outside := Options{CropArea: &Area{Origin: Point{X: 1000, Y: 500}, Size: Size{Width: 1000, Height: 100}}}
	if err := checkCrop(outside, resolveGeometry(outside, native, 1)); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("crop past target err = %v", err)
	}

	if err := checkCrop(outside, resolveGeometry(outside, Size{}, 1)); err != nil {
		t.Fatalf("unknown target size should defer the check: %v", err)
	}
}

func TestOutputSizeEvenAndNeverUpscaled(t *testing.T) {
	tiers := []Resolution{ResolutionCaptured, Resolution480p, Resolution720p, Resolution1080p, Resolution1440p, Resolution2160p, Resolution4320p}
	for _, scale := range []float64{1, 1.25, 2} {
		for w := 1.0; w <= 4000; w += 333 {
			for h := 1.0; h <= 3000; h += 271 {
				for _, tier := range tiers {
					opts := Options{OutputResolution: tier, CropArea: &Area{Size: Size{Width: w, Height: h}}}
					crop := resolveCropArea(opts, Size{Width: 8000, Height: 8000}, scale, false)
					ow, oh := resolveOutputSize(opts, crop, scale)
					if ow%2 != 0 || oh%2 != 0 {
						t.Fatalf("%gx%g@%g %s: output %dx%d is not even", w, h, scale, tier, ow, oh)
					}
					if float64(ow) > crop.Size.Width*scale || float64(oh) > crop.Size.Height*scale {
						t.Fatalf("%gx%g@%g %s: output %dx%d upscales crop", w, h, scale, tier, ow, oh)
					}
				}
			}
		}
	}
}
