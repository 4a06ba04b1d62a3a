package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/inspect"
	"github.com/maohuynh-embedded/camnode/internal/logging"
	"github.com/maohuynh-embedded/camnode/internal/pipeline"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

// CreateSimulateCmd creates the simulate command: a bounded, self-contained
// run of the full pipeline against the simulated devices and a synthetic
// USB host, ending with a stats summary. Useful for soak testing the frame
// path without hardware.
func CreateSimulateCmd() *cobra.Command {
	var duration time.Duration
	var width, height, fps int
	var format string
	var slots int
	var frameIntervalMs int
	var syncPull bool
	var inspectLevel int
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the pipeline against simulated devices",
		Long: `Brings up the full capture/encode/stream pipeline with the simulated ` +
			`sensor and encoder, drives it with a synthetic USB host for the given ` +
			`duration, then prints a stats summary and exits non-zero on leaks.`,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("simulate")

			streamFormat := uvc.FormatMJPEG
			if format == "h264" {
				streamFormat = uvc.FormatH264
			} else if format != "mjpeg" {
				logger.Error("Unknown format, use mjpeg or h264", "format", format)
				os.Exit(1)
			}

			interval := time.Duration(frameIntervalMs) * time.Millisecond
			capDev := device.NewSimCapture(slots, device.WithFrameInterval(interval))
			encDev := device.NewSimEncoder()

			cfg := pipeline.Config{
				SyncPull:     syncPull,
				InspectLevel: inspect.Level(inspectLevel),
			}
			state := pipeline.NewState(cfg, capDev, encDev, telemetry.New())
			p := pipeline.New(state)

			ctx, cancel := context.WithTimeout(context.Background(), duration)
			defer cancel()

			if err := p.Registry.Startup(ctx); err != nil {
				logger.Error("Pipeline startup failed", "error", err)
				os.Exit(1)
			}

			streamCfg := uvc.StreamConfig{
				Format: streamFormat,
				Width:  width,
				Height: height,
				FPS:    fps,
			}
			host := uvc.NewHost(p.Stream, streamCfg)

			logger.Info("Simulation running", "stream", streamCfg.String(), "duration", duration)
			if err := host.Run(ctx); err != nil {
				logger.Error("Host run failed", "error", err)
				p.Shutdown()
				os.Exit(1)
			}

			p.Shutdown()

			st := state.Stats()
			pulls, delivered, empty := host.Stats()
			acq, rel := capDev.Counts()

			fmt.Printf("\nSimulation summary (%s, %s)\n", streamCfg, duration)
			fmt.Printf("  captured:   %d\n", st.Captured)
			fmt.Printf("  encoded:    %d\n", st.Encoded)
			fmt.Printf("  streamed:   %d\n", st.Streamed)
			fmt.Printf("  dropped:    %d\n", st.Dropped)
			fmt.Printf("  io errors:  %d\n", st.IOErrors)
			fmt.Printf("  host pulls: %d (%d delivered, %d empty)\n", pulls, delivered, empty)
			fmt.Printf("  slots:      %d acquired, %d released\n", acq, rel)

			if snap := state.Inspector.Snapshot(); snap.Frames > 0 {
				fmt.Printf("  bitstream:  %d frames, %.1f fps avg, %d..%d bytes\n",
					snap.Frames, snap.AvgFPS, snap.MinSize, snap.MaxSize)
			}

			if acq != rel {
				logger.Error("Slot leak detected", "acquired", acq, "released", rel)
				os.Exit(1)
			}
			if live := state.Arena.LiveBytes(); live != 0 {
				logger.Error("Arena leak detected", "live_bytes", live)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "How long to run the simulation")
	cmd.Flags().IntVar(&width, "width", 1280, "Stream width")
	cmd.Flags().IntVar(&height, "height", 720, "Stream height")
	cmd.Flags().IntVar(&fps, "fps", 30, "Stream frame rate")
	cmd.Flags().StringVar(&format, "format", "mjpeg", "Stream format (mjpeg, h264)")
	cmd.Flags().IntVar(&slots, "slots", 4, "Capture ring slot count")
	cmd.Flags().IntVar(&frameIntervalMs, "frame-interval-ms", 33, "Simulated sensor frame interval")
	cmd.Flags().BoolVar(&syncPull, "sync-pull", false, "Produce frames inside the host pull callback")
	cmd.Flags().IntVar(&inspectLevel, "inspect", 0, "Bitstream inspection level bitmask")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
