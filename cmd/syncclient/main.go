// Command syncclient is a minimal example of wiring a SyncEngine, the
// reference HTTP transport and the debugserver together, modelled on the
// upstream proxy's cmd/syncv3 entrypoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/getsentry/sentry-go"
	"github.com/matrix-org/sliding-sync-client/extensions"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/internal/debugserver"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/transport"
	"github.com/prometheus/client_golang/prometheus"
	"net/http"
)

var (
	flagServer      = flag.String("server", "", "The homeserver base URL, e.g. https://matrix-client.matrix.org")
	flagAccessToken = flag.String("token", "", "Access token to authenticate with")
	flagBindAddr    = flag.String("debug-addr", ":9999", "Bind address for the /debug and /metrics introspection server")
	flagSentryDSN   = flag.String("sentry-dsn", "", "Sentry DSN for error reporting, or empty to disable")
	flagOTLPURL     = flag.String("otlp-url", "", "OTLP collector URL for tracing, or empty to disable")
	flagOTLPUser    = flag.String("otlp-user", "", "Basic auth user for the OTLP collector")
	flagOTLPPass    = flag.String("otlp-pass", "", "Basic auth password for the OTLP collector")
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	flag.Parse()
	if *flagServer == "" || *flagAccessToken == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *flagSentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *flagSentryDSN, Release: version}); err != nil {
			internal.Logger().Warn().Err(err).Msg("failed to initialise sentry")
		}
		defer sentry.Flush(2)
	}
	if *flagOTLPURL != "" {
		if err := internal.ConfigureOTLP(*flagOTLPURL, *flagOTLPUser, *flagOTLPPass, version); err != nil {
			internal.Logger().Warn().Err(err).Msg("failed to configure OTLP tracing")
		}
	}

	tr := transport.NewHTTPTransport(*flagAccessToken)
	transport.ClientVersion = version

	engine := sync3.NewSyncEngine(tr, *flagServer, sync3.WithMetricsRegisterer(prometheus.DefaultRegisterer))
	if err := engine.RegisterExtension(extensions.NewE2EEExtension(true)); err != nil {
		internal.Logger().Fatal().Err(err).Msg("failed to register e2ee extension")
	}
	if err := engine.RegisterExtension(extensions.NewToDeviceExtension(true, 0)); err != nil {
		internal.Logger().Fatal().Err(err).Msg("failed to register to_device extension")
	}
	if err := engine.RegisterExtension(extensions.NewAccountDataExtension(true, nil, nil)); err != nil {
		internal.Logger().Fatal().Err(err).Msg("failed to register account_data extension")
	}

	engine.OnLifecycle(func(ev sync3.LifecycleEvent) {
		if ev.State != sync3.RequestFinished || ev.Err == nil {
			return
		}
		internal.Logger().Warn().Err(ev.Err).Msg("sync iteration failed")
	})
	engine.OnRoomData(func(ev sync3.RoomDataEvent) {
		events, err := sync3.DecodeClientEvents(ev.Data.Timeline)
		if err != nil {
			internal.Logger().Warn().Str("room_id", ev.RoomID).Err(err).Msg("room data: failed to decode timeline events")
			return
		}
		types := make([]string, len(events))
		for i, clientEv := range events {
			types[i] = clientEv.Type
		}
		internal.Logger().Info().Str("room_id", ev.RoomID).Strs("event_types", types).Msg("room data")
	})

	if _, err := engine.SetList(0, sync3.RequestListParams{
		Ranges:        sync3.SliceRanges{{0, 19}},
		Sort:          []string{"by_recency"},
		TimelineLimit: 10,
	}); err != nil {
		internal.Logger().Fatal().Err(err).Msg("failed to configure initial list")
	}

	go func() {
		internal.Logger().Info().Str("addr", *flagBindAddr).Msg("starting debug server")
		if err := http.ListenAndServe(*flagBindAddr, debugserver.Handler(engine)); err != nil {
			internal.Logger().Warn().Err(err).Msg("debug server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		engine.Stop()
	}()

	engine.Start(ctx)
}
