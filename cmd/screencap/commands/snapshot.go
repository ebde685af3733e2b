package commands

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go2tv.app/screencap/capture"
	"go2tv.app/screencap/frame"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [file.png]",
	Short: "Capture one frame and save it as PNG",
	Args:  cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindCaptureFlags(cmd)
	},
	RunE: runSnapshot,
}

var snapshotTimeout time.Duration

func init() {
	rootCmd.AddCommand(snapshotCmd)
	addCaptureFlags(snapshotCmd)

	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 10*time.Second, "give up when no frame arrives in time")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	path := "screencap.png"
	if len(args) == 1 {
		path = args[0]
	}

	opts, err := captureOptions(viper.GetViper())
	if err != nil {
		return err
	}
	opts.CapturesAudio = false

	c, err := capture.Build(opts)
	if err != nil {
		return err
	}
	defer c.StopCapture()
	if err := c.StartCapture(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotTimeout)
	defer cancel()
	v, err := firstVideoFrame(ctx, c)
	if err != nil {
		return err
	}

	img, err := frame.ToImage(v)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	w, h := v.Dimensions()
	fmt.Printf("Saved %dx%d frame to %s\n", w, h, path)
	return nil
}

// firstVideoFrame skips audio and idle frames.
func firstVideoFrame(ctx context.Context, c *capture.Capturer) (frame.Video, error) {
	for {
		f, err := c.GetNextFrameContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for a frame: %w", err)
		}
		if v, ok := f.(frame.Video); ok && !v.IsIdle() {
			return v, nil
		}
	}
}
