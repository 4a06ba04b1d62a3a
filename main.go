package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maohuynh-embedded/camnode/cmd"
	"github.com/maohuynh-embedded/camnode/internal/api"
	"github.com/maohuynh-embedded/camnode/internal/config"
	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/inspect"
	"github.com/maohuynh-embedded/camnode/internal/led"
	"github.com/maohuynh-embedded/camnode/internal/logging"
	"github.com/maohuynh-embedded/camnode/internal/pipeline"
	"github.com/maohuynh-embedded/camnode/internal/systemd"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
	"github.com/maohuynh-embedded/camnode/internal/updater"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camnode.toml"`

	// Settings persistence
	SettingsFile string `help:"Persisted video settings file" default:"settings.toml" toml:"settings.file" env:"SETTINGS_FILE"`

	// API settings
	Host         string `help:"API listen host" default:"0.0.0.0" toml:"api.host" env:"API_HOST"`
	Port         int    `help:"API listen port" short:"p" default:"8095" toml:"api.port" env:"API_PORT"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"api.auth_username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"api.auth_password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsAddr string `help:"Prometheus metrics listen address" default:":9100" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Update settings
	UpdateRepo       string `help:"GitHub repository slug for self-update" default:"maohuynh-embedded/camnode" toml:"update.repo" env:"UPDATE_REPO"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// System settings
	GadgetService string `help:"USB gadget composition systemd unit" default:"camnode-gadget.service" toml:"system.gadget_service" env:"SYSTEM_GADGET_SERVICE"`

	// Pipeline settings
	RawQueueCap     int  `help:"Raw frame queue depth" default:"3" toml:"pipeline.raw_queue" env:"PIPELINE_RAW_QUEUE"`
	EncodedQueueCap int  `help:"Encoded frame queue depth" default:"3" toml:"pipeline.encoded_queue" env:"PIPELINE_ENCODED_QUEUE"`
	ArenaBudgetMB   int  `help:"Frame arena budget in MiB" default:"16" toml:"pipeline.arena_mb" env:"PIPELINE_ARENA_MB"`
	SyncPull        bool `help:"Produce frames inside the host pull callback" default:"false" toml:"pipeline.sync_pull" env:"PIPELINE_SYNC_PULL"`
	InspectLevel    int  `help:"Bitstream inspection level bitmask" default:"0" toml:"pipeline.inspect" env:"PIPELINE_INSPECT"`

	// Device settings
	CaptureSlots    int `help:"Capture ring slot count" default:"4" toml:"device.slots" env:"DEVICE_SLOTS"`
	FrameIntervalMs int `help:"Simulated sensor frame interval in milliseconds" default:"33" toml:"device.frame_interval_ms" env:"DEVICE_FRAME_INTERVAL_MS"`

	// Host settings
	SimulateHost bool `help:"Drive the pipeline with a synthetic USB host" default:"true" toml:"host.simulate" env:"HOST_SIMULATE"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingDevice   string `help:"Device logging level" default:"info" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingUVC      string `help:"UVC gadget logging level" default:"info" toml:"logging.uvc" env:"LOGGING_UVC"`
	LoggingRegistry string `help:"Registry logging level" default:"info" toml:"logging.registry" env:"LOGGING_REGISTRY"`
	LoggingInspect  string `help:"Inspector logging level" default:"info" toml:"logging.inspect" env:"LOGGING_INSPECT"`
}

func loggingConfigFromOptions(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"pipeline": opts.LoggingPipeline,
			"device":   opts.LoggingDevice,
			"uvc":      opts.LoggingUVC,
			"registry": opts.LoggingRegistry,
			"inspect":  opts.LoggingInspect,
		},
	}
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(loggingConfigFromOptions(opts))
		logger := logging.GetLogger("main")

		settings := config.NewSettingsStore(opts.SettingsFile)
		if err := settings.Load(); err != nil {
			logger.Warn("Failed to load persisted settings, using defaults", "error", err)
		}

		// The simulated devices stand in for the sensor/ISP and the
		// hardware encoder; real drivers implement the same interfaces.
		capDev := device.NewSimCapture(opts.CaptureSlots,
			device.WithFrameInterval(time.Duration(opts.FrameIntervalMs)*time.Millisecond))
		encDev := device.NewSimEncoder()

		bus := telemetry.New()
		state := pipeline.NewState(pipeline.Config{
			RawQueueCap:     opts.RawQueueCap,
			EncodedQueueCap: opts.EncodedQueueCap,
			ArenaBudget:     opts.ArenaBudgetMB << 20,
			SyncPull:        opts.SyncPull,
			InspectLevel:    inspect.Level(opts.InspectLevel),
		}, capDev, encDev, bus)
		p := pipeline.New(state)

		// Persist the parameters of every accepted session so the next
		// boot starts from what the host last negotiated.
		bus.Subscribe(func(ev telemetry.StreamStateEvent) {
			if !ev.Active {
				return
			}
			if err := settings.ApplySession(ev.Format, ev.Width, ev.Height, ev.FPS); err != nil {
				logger.Warn("Failed to persist session settings", "error", err)
			}
		})

		// Hot-reload log levels when the config file changes.
		watcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		})
		watcher.OnReload(func(cfg logging.Config) {
			logging.Initialize(cfg)
			logger.Info("Logging configuration reloaded")
		})

		metricsServer := &http.Server{
			Addr:    opts.MetricsAddr,
			Handler: promhttp.Handler(),
		}

		// Status LEDs mirror the session state on boards that have them.
		leds := led.NewManager(led.New(), bus)

		updateSvc, err := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepo,
			Prerelease: opts.UpdatePrerelease,
		})
		if err != nil {
			logger.Warn("Update service unavailable", "error", err)
		}

		// D-Bus is only there on the device; development hosts run
		// without gadget unit control.
		sysManager, err := systemd.NewManager(context.Background())
		if err != nil {
			slog.Debug("systemd D-Bus connection unavailable", "error", err)
			sysManager = nil
		}

		apiServer := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			State:             state,
			Updater:           updateSvc,
			SystemdManager:    sysManager,
			GadgetServiceName: opts.GadgetService,
		})

		runCtx, cancelRun := context.WithCancel(context.Background())
		var host *uvc.Host
		hostDone := make(chan struct{})

		hooks.OnStart(func() {
			if err := p.Registry.Startup(runCtx); err != nil {
				logger.Error("Pipeline startup failed", "error", err)
				os.Exit(1)
			}

			if _, ok := state.Flags.WaitAll(pipeline.FlagsAllReady, 5*time.Second); !ok {
				logger.Error("Stages did not become ready")
				os.Exit(1)
			}

			if err := watcher.Start(); err != nil {
				logger.Warn("Config watcher unavailable, hot-reload disabled", "error", err)
			}

			leds.Start()

			go func() {
				logger.Info("Metrics server listening", "addr", opts.MetricsAddr)
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Metrics server failed", "error", err)
				}
			}()

			go func() {
				addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
				if err := apiServer.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.Error("API server failed", "error", err)
				}
			}()

			if opts.SimulateHost {
				v := settings.Video()
				streamCfg := uvc.StreamConfig{
					Format: uvc.FormatMJPEG,
					Width:  v.Width,
					Height: v.Height,
					FPS:    v.FPS,
				}
				if v.Format == "h264" || v.Format == "H264" {
					streamCfg.Format = uvc.FormatH264
				}
				host = uvc.NewHost(p.Stream, streamCfg)
				go func() {
					defer close(hostDone)
					if err := host.Run(runCtx); err != nil {
						logger.Error("Host session failed", "error", err)
					}
				}()
			} else {
				close(hostDone)
			}

			daemon.SdNotify(false, daemon.SdNotifyReady)
			logger.Info("camnode started")
		})

		hooks.OnStop(func() {
			daemon.SdNotify(false, daemon.SdNotifyStopping)
			logger.Info("Shutting down")

			cancelRun()
			select {
			case <-hostDone:
			case <-time.After(2 * time.Second):
				logger.Warn("Host session did not stop in time")
			}

			if err := apiServer.Stop(); err != nil {
				logger.Error("Error stopping API server", "error", err)
			}

			p.Shutdown()
			watcher.Stop()
			leds.Stop()
			if sysManager != nil {
				sysManager.Close()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error stopping metrics server", "error", err)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateSimulateCmd())

	cli.Run()
}
