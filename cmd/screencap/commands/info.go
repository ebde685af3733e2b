package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go2tv.app/screencap/capture"
	"go2tv.app/screencap/targets"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show capture support, permission and the resolved output size",
	Long: `Report whether screen capture works on this machine and which frame size
a session with the given options would deliver.

With --request the OS permission prompt is shown when permission is missing
(macOS). Opening a session on Wayland shows the portal picker.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindCaptureFlags(cmd)
	},
	RunE: runInfo,
}

var (
	infoRequest bool
	infoOpen    bool
)

func init() {
	rootCmd.AddCommand(infoCmd)
	addCaptureFlags(infoCmd)

	infoCmd.Flags().BoolVar(&infoRequest, "request", false, "request capture permission if missing")
	infoCmd.Flags().BoolVar(&infoOpen, "open", true, "open a session to resolve the output size")
}

func runInfo(cmd *cobra.Command, args []string) error {
	supported := capture.IsSupported()
	permitted := capture.HasPermission()
	if !permitted && infoRequest {
		permitted = capture.RequestPermission()
	}

	fmt.Printf("Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("Supported:  %t\n", supported)
	fmt.Printf("Permission: %t\n", permitted)
	if !supported || !permitted || !infoOpen {
		return nil
	}

	opts, err := captureOptions(viper.GetViper())
	if err != nil {
		return err
	}
	c, err := capture.Build(opts)
	if err != nil {
		return fmt.Errorf("failed to open capture session: %w", err)
	}
	defer c.StopCapture()

	w, h := c.GetOutputFrameSize()
	fmt.Printf("Target:     %s\n", targets.Describe(opts.Target))
	fmt.Printf("Output:     %dx%d %s @ %d fps\n", w, h, opts.OutputType, opts.FPS)
	return nil
}
