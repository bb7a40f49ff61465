package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"blindscontrol/internal/api"
	"blindscontrol/internal/clock"
	"blindscontrol/internal/config"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/ha"
	"blindscontrol/internal/integration"
	"blindscontrol/internal/logging"
	"blindscontrol/internal/mqtt"
	_ "blindscontrol/internal/plugins/habridge"
	_ "blindscontrol/internal/plugins/mqttbridge"
	"blindscontrol/internal/plugins/sunschedule"
	"blindscontrol/pkg/plugin"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "./configs"
	}

	bootLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	clk := clock.New()
	loader := config.NewLoader(configDir, clk, bootLogger)
	cfg, err := loader.Load()
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLogger.Fatal("Failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("Starting blinds control",
		zap.String("config", loader.Path()),
		zap.Int("entries", len(cfg.Entries)),
		zap.Bool("home_assistant", cfg.HomeAssistant.Enabled),
		zap.Bool("mqtt", cfg.MQTT.Enabled))

	ctx := context.Background()
	covers := cover.NewRegistry()
	manager := integration.NewManager(covers, clk, nil, logger)
	if err := manager.Sync(ctx, entriesFromConfig(cfg)); err != nil {
		logger.Warn("Some config entries failed to set up", zap.Error(err))
	}

	pluginCtx := plugin.NewContext(covers, loader, clk, logger)

	var haClient *ha.Client
	if cfg.HomeAssistant.Enabled {
		haClient = ha.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
		if err := haClient.Connect(); err != nil {
			logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
		}
		restURL, err := ha.RESTBaseURL(cfg.HomeAssistant.URL)
		if err != nil {
			logger.Fatal("Invalid Home Assistant URL", zap.Error(err))
		}
		pluginCtx.HAClient = haClient
		pluginCtx.StateWriter = ha.NewStateWriter(restURL, cfg.HomeAssistant.Token, cfg.RequestTimeout, logger)
		logger.Info("Connected to Home Assistant", zap.Bool("read_only", cfg.HomeAssistant.ReadOnly))
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		pluginCtx.MQTT = mqttClient
	}

	logger.Info("Creating plugins", zap.Strings("registered", plugin.Names()))
	plugins, err := plugin.CreateAll(pluginCtx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}
	if err := plugin.StartAll(plugins); err != nil {
		logger.Fatal("Failed to start plugins", zap.Error(err))
	}
	for _, p := range plugins {
		logger.Info("Plugin started", zap.String("plugin", p.Name()))
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(covers, manager, sunStatus(plugins), logger, cfg.API.Port)
		if err := apiServer.Start(); err != nil {
			logger.Fatal("Failed to start API server", zap.Error(err))
		}
	}

	loader.OnReload(func(newCfg *config.Config) {
		if err := manager.Sync(ctx, entriesFromConfig(newCfg)); err != nil {
			logger.Warn("Some config entries failed to reload", zap.Error(err))
		}
		if err := plugin.ResetAll(plugins); err != nil {
			logger.Warn("Some plugins failed to reset", zap.Error(err))
		}
	})
	loader.StartAutoReload()

	// Setup signal handling for graceful shutdown; SIGHUP reloads the config
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	logger.Info("Application running. Press Ctrl+C to exit.", zap.Int("covers", len(covers.Covers())))

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}
		logger.Info("Reloading configuration")
		if err := loader.Reload(); err != nil {
			logger.Error("Failed to reload configuration", zap.Error(err))
		}
	}

	logger.Info("Shutting down gracefully...")
	loader.Stop()

	var errs error
	if apiServer != nil {
		errs = multierr.Append(errs, apiServer.Stop())
	}
	plugin.StopAll(plugins)
	errs = multierr.Append(errs, manager.UnloadAll())
	if mqttClient != nil {
		errs = multierr.Append(errs, mqttClient.Close())
	}
	if haClient != nil {
		errs = multierr.Append(errs, haClient.Disconnect())
	}
	if errs != nil {
		logger.Error("Shutdown finished with errors", zap.Error(errs))
	}
}

// entriesFromConfig turns the configured entries into integration entries
func entriesFromConfig(cfg *config.Config) []integration.Entry {
	entries := make([]integration.Entry, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		entries = append(entries, integration.Entry{
			ID:             e.ID,
			Domain:         e.Domain,
			Title:          e.Title,
			Host:           e.Host,
			Port:           e.Port,
			Names:          e.Names,
			Blinds:         e.Blinds,
			ScanInterval:   cfg.EntryScanInterval(e),
			RequestTimeout: cfg.EntryRequestTimeout(e),
		})
	}
	return entries
}

// sunStatus finds the running sun schedule, if any
func sunStatus(plugins []plugin.Plugin) api.SunStatus {
	for _, p := range plugins {
		if s, ok := p.(interface{ Manager() *sunschedule.Manager }); ok {
			return s.Manager()
		}
	}
	return nil
}
