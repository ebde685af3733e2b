package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go2tv.app/screencap/capture"
	"go2tv.app/screencap/frame"
	"go2tv.app/screencap/internal/logger"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Write raw frames to a file or stdout",
	Long: `Capture frames and write their raw planes back to back. Video goes to
--output, audio (s16le interleaved) to --audio-output when set. Idle frames
are skipped.

The stream can be piped into an encoder, e.g.

  screencap record --format bgra --output - | \
    ffmpeg -f rawvideo -pix_fmt bgra -s 1920x1080 -r 60 -i pipe:0 out.mp4`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindCaptureFlags(cmd); err != nil {
			return err
		}
		for _, name := range []string{"output", "audio-output", "frames", "duration"} {
			if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	addCaptureFlags(recordCmd)

	recordCmd.Flags().StringP("output", "o", "-", "video output file, - for stdout")
	recordCmd.Flags().String("audio-output", "", "audio output file")
	recordCmd.Flags().Int("frames", 0, "stop after this many video frames (0 = unlimited)")
	recordCmd.Flags().Duration("duration", 0, "stop after this long (0 = until interrupted)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	opts, err := captureOptions(viper.GetViper())
	if err != nil {
		return err
	}

	video, err := openOutput(viper.GetString("output"))
	if err != nil {
		return err
	}
	defer video.Close()
	vw := bufio.NewWriterSize(video, 1<<20)
	defer vw.Flush()

	var aw io.Writer
	if p := viper.GetString("audio-output"); p != "" {
		audio, err := openOutput(p)
		if err != nil {
			return err
		}
		defer audio.Close()
		buf := bufio.NewWriter(audio)
		defer buf.Flush()
		aw = buf
	}

	c, err := capture.Build(opts)
	if err != nil {
		return err
	}
	w, h := c.GetOutputFrameSize()
	log.Info().
		Uint32("width", w).
		Uint32("height", h).
		Str("format", opts.OutputType.String()).
		Msg("recording")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := viper.GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := c.StartCapture(); err != nil {
		_ = c.StopCapture()
		return err
	}

	begin := time.Now()
	written, loopErr := recordLoop(ctx, c, vw, aw, viper.GetInt("frames"))
	stopErr := c.StopCapture()

	stats := c.Stats()
	log.Info().
		Int("frames", written).
		Dur("elapsed", time.Since(begin)).
		Uint64("delivered", stats.Delivered).
		Uint64("dropped", stats.Dropped).
		Msg("recording finished")

	if loopErr != nil {
		return loopErr
	}
	if stopErr != nil && !errors.Is(stopErr, capture.ErrCaptureEnded) {
		return stopErr
	}
	return nil
}

// recordLoop pulls frames until limit video frames were written or ctx ends.
// A limit of 0 means no limit.
func recordLoop(ctx context.Context, c *capture.Capturer, vw, aw io.Writer, limit int) (int, error) {
	written := 0
	for limit <= 0 || written < limit {
		f, err := c.GetNextFrameContext(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		switch v := f.(type) {
		case frame.Video:
			if v.IsIdle() {
				continue
			}
			if err := writeVideo(vw, v); err != nil {
				return written, fmt.Errorf("write video: %w", err)
			}
			written++
		case *frame.AudioFrame:
			if aw == nil {
				continue
			}
			if err := writeAudio(aw, v); err != nil {
				return written, fmt.Errorf("write audio: %w", err)
			}
		}
	}
	return written, nil
}

func writeVideo(w io.Writer, v frame.Video) error {
	for _, p := range v.Planes() {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func writeAudio(w io.Writer, a *frame.AudioFrame) error {
	if a.Format == frame.AudioI16 && !a.Planar {
		_, err := w.Write(a.Data)
		return err
	}
	pcm, err := a.ToInterleavedS16()
	if err != nil {
		return err
	}
	_, err = w.Write(pcm)
	return err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}
