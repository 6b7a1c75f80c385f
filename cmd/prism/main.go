package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	prism "github.com/prism-cache/prism"
	"github.com/prism-cache/prism/cache"
)

var (
	// CLI flags
	portFlag           int
	originFlag         string
	dbFilenameFlag     string
	configFilenameFlag string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name (empty for in-memory cache)")
	flag.StringVar(&configFilenameFlag, "config", "", "Route config file (yaml)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	if originFlag == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originURL, err := url.Parse(originFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	var config Config
	if configFilenameFlag != "" {
		config, err = getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}
	defaultTTL, err := parseTTL(config.DefaultTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid defaultTTL")
	}
	collectionTTL, err := parseTTL(config.CollectionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid collectionTTL")
	}

	var store cache.Store
	if dbFilenameFlag != "" {
		sqliteStore, err := cache.NewSQLiteStore(dbFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open cache db")
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	p := prism.New(prism.Config{
		Store:         store,
		DefaultTTL:    defaultTTL,
		CollectionTTL: collectionTTL,
		HeaderName:    config.HeaderName,
		UserHeader:    config.UserHeader,
		MaxDepth:      config.MaxDepth,
	})

	proxy := httputil.NewSingleHostReverseProxy(originURL)
	router := chi.NewRouter()
	for _, route := range config.Routes {
		method := strings.ToUpper(route.Method)
		if method == "" || method == http.MethodGet {
			ttl, err := parseTTL(route.TTL)
			if err != nil {
				log.Fatal().Err(err).Str("path", route.Path).Msg("Invalid route ttl")
			}
			router.With(p.Projected(prism.Endpoint{
				TTL:           ttl,
				Collection:    route.Collection,
				PerUser:       route.PerUser,
				AllowedFields: route.AllowedFields,
			})).Get(route.Path, proxy.ServeHTTP)
			continue
		}
		router.With(p.Invalidate(route.Invalidate...)).Method(method, route.Path, proxy)
	}
	// everything not configured passes straight through
	router.NotFound(proxy.ServeHTTP)
	router.MethodNotAllowed(proxy.ServeHTTP)

	log.Info().Msgf("Proxying port %v to %s with %d configured routes", portFlag, originURL.String(), len(config.Routes))
	err = http.ListenAndServe(fmt.Sprintf(":%d", portFlag), router)

	if err != nil {
		panic(err)
	}
}
