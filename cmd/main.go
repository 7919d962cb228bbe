package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/kenaz/culling"
	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/jobs"
	"github.com/aukilabs/kenaz/scene"
	kwebsocket "github.com/aukilabs/kenaz/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

var (
	// The Kenaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "kenaz_info",
		Help:        "Kenaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr                 string        `cli:""        env:"KENAZ_ADDR"                    help:"Listening address for the visibility feed and the public API."`
	AdminAddr            string        `cli:""        env:"KENAZ_ADMIN_ADDR"              help:"Admin listening address."`
	LogLevel             string        `cli:""        env:"KENAZ_LOG_LEVEL"               help:"Log level (debug|info|warning|error)."`
	LogIndent            bool          `cli:""        env:"KENAZ_LOG_INDENT"              help:"Indent logs."`
	Workers              int           `cli:""        env:"KENAZ_WORKERS"                 help:"The number of culling workers, 0 for one per CPU (max 16)."`
	MinEntitiesPerWorker int           `cli:",hidden" env:"KENAZ_MIN_ENTITIES_PER_WORKER" help:"The number of entities per worker under which culling runs synchronously."`
	Volumes              int           `cli:""        env:"KENAZ_VOLUMES"                 help:"The number of entities the scene is populated with."`
	WorldSize            float64       `cli:",hidden" env:"KENAZ_WORLD_SIZE"              help:"The half extent of the scene world."`
	Seed                 int64         `cli:",hidden" env:"KENAZ_SEED"                    help:"The seed used to populate the scene, 0 for a random one."`
	FrameDuration        time.Duration `cli:",hidden" env:"KENAZ_FRAME_DURATION"          help:"The duration of a scene frame."`
	FeedQueueSize        int           `cli:",hidden" env:"KENAZ_FEED_QUEUE_SIZE"         help:"The number of frames queued per feed client before frames are dropped."`
	LogSummaryInterval   time.Duration `cli:",hidden" env:"KENAZ_LOG_SUMMARY_INTERVAL"    help:"The duration between each frame summary log."`
	Events               eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags         []string      `cli:",hidden" env:"KENAZ_FEATURE_FLAGS"           help:"Comma separated feature flags"`
	Version              bool          `cli:""        env:"-"                             help:"Show version."`
	Help                 bool          `cli:""        env:"-"                             help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"KENAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"KENAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"KENAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"KENAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:                 ":4100",
		AdminAddr:            ":18290",
		LogLevel:             logs.InfoLevel.String(),
		MinEntitiesPerWorker: culling.DefaultMinEntitiesPerWorker,
		Volumes:              10000,
		WorldSize:            100,
		FrameDuration:        time.Millisecond * 15,
		FeedQueueSize:        16,
		LogSummaryInterval:   time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Kenaz visibility server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "kenaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	workers := conf.Workers
	if workers == 0 {
		workers = min(runtime.NumCPU(), culling.MaxWorkers)
	}

	jobManager := jobs.NewManager(workers)
	defer jobManager.Close()

	cullingSystem, err := culling.New(jobManager,
		culling.WithName("scene"),
		culling.WithMinEntitiesPerWorker(conf.MinEntitiesPerWorker),
	)
	if err != nil {
		logs.Fatal(errors.New("creating culling system failed").Wrap(err))
	}
	defer cullingSystem.Close()

	world := scene.New(cullingSystem, scene.Options{
		WorldSize:          float32(conf.WorldSize),
		TimeStep:           conf.FrameDuration,
		LogSummaryInterval: conf.LogSummaryInterval,
		Seed:               conf.Seed,
		FeatureFlags:       featureFlags,
	})
	world.Populate(conf.Volumes)

	var service http.ServeMux
	service.Handle("/health", kenazhttp.HandleWithCORS(http.HandlerFunc(kenazhttp.HandleHealthCheck)))
	service.Handle("/version", kenazhttp.HandleWithCORS(kenazhttp.HandleVersion(version)))
	service.Handle("/stats", kenazhttp.HandleWithCORS(kenazhttp.HandleStats(world)))
	service.Handle("/entities", kenazhttp.HandleWithCORS(kenazhttp.HandleEntities(world)))

	readinessCheck := func() bool {
		return world.Stats().Frame != 0
	}
	service.Handle("/ready", kenazhttp.HandleWithCORS(kenazhttp.HandleReadyCheck(readinessCheck)))

	featureFlags.IfNotSet(featureflag.FlagDisableVisibilityFeed, func() {
		feed := kwebsocket.NewFeed(world, conf.FeedQueueSize)
		service.Handle("/feed", kenazhttp.HandleWithCORS(feed.Server(ctx)))
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", kenazhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", kenazhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("workers", cullingSystem.WorkerCount()).
		WithTag("volumes", conf.Volumes).
		WithTag("feature_flags", featureFlags.Strings()).
		Info("starting kenaz server")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return world.Run(ctx, conf.FrameDuration)
	})

	g.Go(func() error {
		return kenazhttp.ListenAndServe(ctx,
			&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				kenazhttp.MetricsPathFormatter)},
			&http.Server{Addr: conf.AdminAddr, Handler: &admin},
		)
	})

	if err := g.Wait(); err != nil {
		logs.Warn(errors.New("kenaz server stopped").Wrap(err))
	}
}

func validateConfig(conf config) error {
	if conf.Workers < 0 || conf.Workers > culling.MaxWorkers {
		return errors.New("invalid number of workers").
			WithTag("workers", conf.Workers).
			WithTag("max_workers", culling.MaxWorkers)
	}

	if conf.MinEntitiesPerWorker < 1 {
		return errors.New("min entities per worker must be positive").
			WithTag("min_entities_per_worker", conf.MinEntitiesPerWorker)
	}

	if conf.Volumes < 0 {
		return errors.New("number of volumes can't be negative").
			WithTag("volumes", conf.Volumes)
	}

	if conf.WorldSize <= 0 {
		return errors.New("world size must be positive").
			WithTag("world_size", conf.WorldSize)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	return nil
}
