package commands

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"go2tv.app/screencap/capture"
	"go2tv.app/screencap/frame"
)

func TestParseCrop(t *testing.T) {
	a, err := parseCrop("10, 20,300,200.5")
	if err != nil {
		t.Fatal(err)
	}
	want := capture.Area{Origin: capture.Point{X: 10, Y: 20}, Size: capture.Size{Width: 300, Height: 200.5}}
	if a != want {
		t.Fatalf("parseCrop = %+v, want %+v", a, want)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3,4,5"} {
		if _, err := parseCrop(bad); err == nil {
			t.Errorf("parseCrop(%q) succeeded", bad)
		}
	}
}

func TestParseTargetRef(t *testing.T) {
	tests := []struct {
		in   string
		kind string
		id   uint32
		ok   bool
	}{
		{"display:2", "display", 2, true},
		{"window:4194307", "window", 4194307, true},
		{"7", "", 7, true},
		{"screen:1", "", 0, false},
		{"window:", "", 0, false},
		{"window:-1", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, id, err := parseTargetRef(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, want ok=%t", err, tt.ok)
			}
			if tt.ok && (kind != tt.kind || id != tt.id) {
				t.Fatalf("got %q %d, want %q %d", kind, id, tt.kind, tt.id)
			}
		})
	}
}

func TestCaptureOptions(t *testing.T) {
	v := viper.New()
	v.Set("fps", 30)
	v.Set("cursor", false)
	v.Set("format", "rgb")
	v.Set("resolution", "720p")
	v.Set("crop", "0,0,640,480")

	opts, err := captureOptions(v)
	if err != nil {
		t.Fatal(err)
	}
	if opts.FPS != 30 || opts.ShowCursor || opts.OutputType != frame.TypeRGB || opts.OutputResolution != capture.Resolution720p {
		t.Fatalf("options = %+v", opts)
	}
	if opts.CropArea == nil || opts.CropArea.Size.Width != 640 {
		t.Fatalf("crop = %+v", opts.CropArea)
	}
	if opts.Target != nil {
		t.Fatalf("target = %v, want main display", opts.Target)
	}
}

func TestCaptureOptionsRejectsBadValues(t *testing.T) {
	v := viper.New()
	v.Set("format", "rgb")
	v.Set("resolution", "999p")
	if _, err := captureOptions(v); !errors.Is(err, capture.ErrInvalidOptions) {
		t.Fatalf("err = %v, want ErrInvalidOptions", err)
	}

	v.Set("resolution", "")
	v.Set("format", "cmyk")
	if _, err := captureOptions(v); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestDefaultConfigRoundTripsThroughViper(t *testing.T) {
	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if got := effectiveConfig(v); !reflect.DeepEqual(got, defaultConfig()) {
		t.Fatalf("effective config = %+v, want %+v", got, defaultConfig())
	}

	opts, err := captureOptions(v)
	if err != nil {
		t.Fatal(err)
	}
	if opts.FPS != 60 || !opts.ShowCursor || opts.OutputType != frame.TypeBGRA || opts.OutputResolution != capture.ResolutionCaptured {
		t.Fatalf("options = %+v", opts)
	}
}
