package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go2tv.app/screencap/capture"
	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/targets"
)

// addCaptureFlags registers the flags every capturing command shares.
func addCaptureFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint32("fps", 60, "requested frame rate")
	f.Bool("cursor", true, "draw the pointer into frames")
	f.Bool("highlight", false, "outline the captured window where supported")
	f.String("format", "bgra", "output pixel layout (yuv, bgr0, rgb, bgra)")
	f.String("resolution", "captured", "output size tier (captured, 480p, 720p, 1080p, 1440p, 2160p, 4320p)")
	f.String("crop", "", "crop rectangle x,y,w,h in target points")
	f.String("target", "", "target to capture: display:<id>, window:<id> or <id> (default main display)")
	f.StringSlice("exclude", nil, "window ids to leave out of a display capture (macOS)")
	f.Bool("audio", false, "capture system audio (macOS, Wayland)")
}

// bindCaptureFlags binds cmd's capture flags to viper. Called from PreRunE so
// the running command owns the keys.
func bindCaptureFlags(cmd *cobra.Command) error {
	for _, name := range []string{"fps", "cursor", "highlight", "format", "resolution", "crop", "target", "exclude", "audio"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// captureOptions builds capture options from v. Target references are
// resolved against the live target list only when one is given.
func captureOptions(v *viper.Viper) (capture.Options, error) {
	opts := capture.Options{
		FPS:           v.GetUint32("fps"),
		ShowCursor:    v.GetBool("cursor"),
		ShowHighlight: v.GetBool("highlight"),
		CapturesAudio: v.GetBool("audio"),
	}

	var err error
	if opts.OutputType, err = frame.ParseType(v.GetString("format")); err != nil {
		return opts, err
	}
	if opts.OutputResolution, err = capture.ParseResolution(v.GetString("resolution")); err != nil {
		return opts, err
	}
	if s := v.GetString("crop"); s != "" {
		area, err := parseCrop(s)
		if err != nil {
			return opts, err
		}
		opts.CropArea = &area
	}

	target := v.GetString("target")
	exclude := v.GetStringSlice("exclude")
	if target == "" && len(exclude) == 0 {
		return opts, nil
	}

	all, err := targets.GetAllTargets()
	if err != nil {
		return opts, fmt.Errorf("list targets: %w", err)
	}
	if target != "" {
		kind, id, err := parseTargetRef(target)
		if err != nil {
			return opts, err
		}
		if opts.Target, err = targets.Find(all, kind, id); err != nil {
			return opts, err
		}
	}
	for _, ref := range exclude {
		_, id, err := parseTargetRef(ref)
		if err != nil {
			return opts, err
		}
		w, err := targets.Find(all, "window", id)
		if err != nil {
			return opts, err
		}
		opts.ExcludedTargets = append(opts.ExcludedTargets, w)
	}
	return opts, nil
}

// parseCrop parses "x,y,w,h".
func parseCrop(s string) (capture.Area, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return capture.Area{}, fmt.Errorf("crop %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return capture.Area{}, fmt.Errorf("crop %q: %w", s, err)
		}
		v[i] = n
	}
	return capture.Area{
		Origin: capture.Point{X: v[0], Y: v[1]},
		Size:   capture.Size{Width: v[2], Height: v[3]},
	}, nil
}

// parseTargetRef parses "display:<id>", "window:<id>" or a bare id.
func parseTargetRef(s string) (string, uint32, error) {
	kind, idStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		kind, idStr = "", kind
	}
	switch kind {
	case "", "display", "window":
	default:
		return "", 0, fmt.Errorf("target %q: unknown kind %q", s, kind)
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("target %q: %w", s, err)
	}
	return kind, uint32(id), nil
}
