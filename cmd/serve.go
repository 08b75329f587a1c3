package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/metrics"
	"github.com/theapemachine/mediagen/pkg/notify"
	"github.com/theapemachine/mediagen/pkg/processor"
	"github.com/theapemachine/mediagen/pkg/provider"
	"github.com/theapemachine/mediagen/pkg/queue"
	"github.com/theapemachine/mediagen/pkg/service"
	"github.com/theapemachine/mediagen/pkg/stores"
	"github.com/theapemachine/mediagen/pkg/worker"
)

var (
	portFlag int
	hostFlag string
	demoFlag bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the media generation agent",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (overrides config)")
	serveCmd.Flags().BoolVar(&demoFlag, "demo", false, "Serve canned demo assets instead of calling real backends")
}

func runServe(ctx context.Context) error {
	applyLogLevel()

	store := stores.NewInMemoryTaskStore()

	deliveryMetrics := metrics.NewDeliveryMetrics()
	hub := notify.NewHub(notify.NewDispatcher(
		viper.GetInt("hub.webhookWorkers"),
		viper.GetInt("hub.webhookQueue"),
		deliveryMetrics,
	), deliveryMetrics)

	// every store write fans out to SSE streams and webhooks
	store.AddListener(hub.TaskUpdated)

	registry := worker.NewRegistry()
	registerWorkers(registry)

	taskProcessor, err := processor.New(store, registry)

	if err != nil {
		return err
	}

	taskQueue := queue.New(queue.Config{
		MaxConcurrent: viper.GetInt("queue.maxConcurrent"),
		MaxRetries:    viper.GetInt("queue.maxRetries"),
		RetryDelay:    viper.GetDuration("queue.retryDelay"),
	}, taskProcessor.Process, taskProcessor.RequestCancel)

	server := service.NewServer(
		a2a.NewAgentCardFromConfig(),
		store,
		hub,
		taskQueue,
		taskProcessor,
		service.WithAddr(listenAddr()),
		service.WithDeliveryMetrics(deliveryMetrics),
	)

	errChan := make(chan error, 1)

	go func() {
		errChan <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down", "reason", "context cancelled")
	case sig := <-stop:
		log.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	if err := taskQueue.Shutdown(shutdownCtx); err != nil {
		log.Error("queue shutdown failed", "error", err)
	}

	hub.Close()

	return nil
}

/*
registerWorkers binds one worker per advertised skill.  Demo mode swaps
in canned workers so the whole pipeline can be exercised without any
provider credentials.
*/
func registerWorkers(registry *worker.Registry) {
	if demoFlag || os.Getenv("DEMO_MODE") == "true" {
		log.Warn("demo mode active, all skills serve canned assets")
		registry.Register("text2image", worker.NewDemoWorker("image", 2*time.Second))
		registry.Register("text2video", worker.NewDemoWorker("video", 3*time.Second))
		registry.Register("text2audio", worker.NewDemoWorker("audio", 3*time.Second))
		return
	}

	shared := sharedWorkerOptions()

	registry.Register("text2image", worker.NewImageWorker(
		backendFor("image", "IMAGE_API_KEY"), shared...))
	registry.Register("text2video", worker.NewVideoWorker(
		backendFor("video", "VIDEO_API_KEY"), shared...))
	registry.Register("text2audio", worker.NewAudioWorker(
		backendFor("audio", "AUDIO_API_KEY"), shared...))
}

func backendFor(kind string, keyEnv string) *provider.GenerationClient {
	return provider.NewGenerationClient(
		viper.GetString("providers."+kind+".baseUrl"),
		provider.WithAPIKey(os.Getenv(keyEnv)),
		provider.WithModel(viper.GetString("providers."+kind+".model")),
	)
}

func sharedWorkerOptions() []worker.Option {
	options := []worker.Option{}

	metadataOptions := []provider.MetadataClientOption{}

	if os.Getenv("OPENAI_API_KEY") != "" {
		metadataOptions = append(metadataOptions, provider.WithOpenAIClient())
	}

	if model := viper.GetString("metadata.model"); model != "" {
		metadataOptions = append(metadataOptions, provider.WithMetadataModel(model))
	}

	options = append(options, worker.WithMetadata(provider.NewMetadataClient(metadataOptions...)))

	if mirror := provider.NewMirrorFromEnv(); mirror != nil {
		log.Info("artifact mirror enabled", "bucket", os.Getenv("MINIO_BUCKET"))
		options = append(options, worker.WithMirror(mirror))
	}

	return options
}

func listenAddr() string {
	host := hostFlag

	if host == "" {
		host = viper.GetString("server.host")
	}

	port := portFlag

	if port == 0 {
		port = viper.GetInt("server.port")
	}

	return fmt.Sprintf("%s:%d", host, port)
}

func applyLogLevel() {
	switch viper.GetString("log.level") {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

var longServe = `
Run the mediagen A2A agent.

Examples:
  # Serve on the default port with providers from the environment
  mediagen serve

  # Serve on port 8080 in demo mode (no provider credentials needed)
  mediagen serve --port 8080 --demo
`
