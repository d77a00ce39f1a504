package main

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"golang.org/x/time/rate"

	"speakingbuddy/internal/progress"
	"speakingbuddy/internal/scoring"
	"speakingbuddy/internal/speech"
)

func main() {
	_ = godotenv.Load()

	app := newApp()
	logInfo("Starting SpeakingBuddy in %s mode",
		map[bool]string{true: "production", false: "development"}[app.IsProduction])

	catalogs, order, err := loadCatalogs(getEnvStr("CATALOG_DIR", "data/catalogs"))
	if err != nil {
		logFatal("Failed to load catalogs: %v", err)
	}
	app.Catalogs = catalogs
	app.CatalogOrder = order
	logInfo("Loaded %d catalogs", len(catalogs))

	app.wireBackend()
	app.wireSpeech()
	app.wireProgress()

	go app.sessionCleanupLoop()

	startServer(app.buildRouter())
}

// newApp builds the App with configuration from the environment.
func newApp() *App {
	return &App{
		Sessions:       make(map[string]*PracticeState),
		LimiterMap:     make(map[string]*rate.Limiter),
		IsProduction:   os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",
		StartTime:      time.Now(),
		CookieMaxAge:   getEnvDuration("COOKIE_MAX_AGE", 24*time.Hour),
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 2*time.Hour),
		StaticCacheAge: getEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		QuizLimit:      getEnvInt("QUIZ_LIMIT", DefaultQuizLimit),
	}
}

// wireBackend connects the pronunciation scoring backend when configured.
// Without one the app still serves flashcards and quizzes from the static
// catalogs; only evaluation is unavailable.
func (app *App) wireBackend() {
	baseURL := os.Getenv("BACKEND_URL")
	if baseURL == "" {
		logWarn("BACKEND_URL not set; pronunciation evaluation disabled")
		return
	}
	client, err := scoring.New(scoring.Config{
		BaseURL: baseURL,
		Timeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
	})
	if err != nil {
		logFatal("Invalid backend configuration: %v", err)
	}
	app.Scoring = client
	logInfo("Scoring backend: %s", baseURL)
}

// wireSpeech connects synthesis and recognition. Both degrade gracefully:
// missing API key means the Listen control is disabled and stop feedback
// shows a static message.
func (app *App) wireSpeech() {
	apiKey := os.Getenv("OPENAI_API_KEY")

	synth, err := speech.NewOpenAISynthesizer(apiKey, os.Getenv("TTS_MODEL"), PracticeLocale)
	if err != nil {
		logWarn("Speech synthesis unavailable: %v", err)
	} else {
		speaker, err := speech.NewSpeaker(synth, PracticeLanguage, getEnvStr("SPEECH_CACHE_DIR", ""))
		if err != nil {
			logWarn("Speech synthesis unavailable: %v", err)
		} else {
			app.Speaker = speaker
			logInfo("Speech synthesis enabled with %d voices", len(speaker.Voices()))
		}
	}

	recognizer, err := speech.NewRecognizer(apiKey)
	if err != nil {
		logWarn("Speech recognition unavailable: %v", err)
		return
	}
	app.Recognizer = recognizer
	logInfo("Speech recognition enabled")
}

// wireProgress opens the local progress store.
func (app *App) wireProgress() {
	path := getEnvStr("PROGRESS_DB", "data/progress.db")
	store, err := progress.Open(path)
	if err != nil {
		logWarn("Progress store unavailable: %v", err)
		return
	}
	app.Progress = store
	logInfo("Progress store: %s", path)
}

// sessionCleanupLoop prunes expired in-memory states and stale session files.
func (app *App) sessionCleanupLoop() {
	ticker := time.NewTicker(app.SessionTimeout / 2)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-app.SessionTimeout)

		app.SessionMutex.Lock()
		for key, st := range app.Sessions {
			if st.LastAccessTime.Before(cutoff) {
				delete(app.Sessions, key)
			}
		}
		app.SessionMutex.Unlock()

		if err := cleanupOldSessions(app.SessionTimeout); err != nil {
			logWarn("Session file cleanup failed: %v", err)
		}
	}
}

// buildRouter wires middleware, assets, and routes.
func (app *App) buildRouter() *gin.Engine {
	router := gin.Default()

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".mp3", ".wav", ".ogg", ".webm"}),
		ginGzip.WithExcludedPaths([]string{"/static/fonts"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(requestIDMiddleware())
	router.Use(func(c *gin.Context) {
		app.applyCacheHeaders(c)
	})

	router.SetFuncMap(template.FuncMap{
		"hasPrefix": strings.HasPrefix,
	})

	if app.IsProduction && dirExists("dist") {
		logInfo("Serving assets from dist/ directory")
		router.LoadHTMLGlob("dist/templates/*.html")
		router.Static("/static", "./dist/static")
	} else {
		logInfo("Serving development assets from source directories")
		router.LoadHTMLGlob("templates/*.html")
		router.Static("/static", "./static")
	}

	limited := app.rateLimitMiddleware()

	router.GET(RouteHome, app.homeHandler)
	router.POST(RouteSettings, limited, app.settingsHandler)
	router.GET(RouteTopic, app.topicHandler)

	router.POST(RouteNav, limited, app.navHandler)
	router.POST(RouteRecordStart, limited, app.recordStartHandler)
	router.POST(RouteRecordChunk, app.recordChunkHandler)
	router.POST(RouteRecordStop, limited, app.recordStopHandler)
	router.POST(RouteRecordRetry, limited, app.recordRetryHandler)
	router.POST(RouteRecordLevel, app.recordLevelHandler)
	router.GET(RouteClip, app.clipHandler)
	router.POST(RouteEvaluate, limited, app.evaluateHandler)

	router.POST(RouteQuizStart, limited, app.quizStartHandler)
	router.POST(RouteQuizAnswer, limited, app.quizAnswerHandler)
	router.POST(RouteQuizNext, limited, app.quizNextHandler)

	router.GET(RouteSpeech, app.speechHandler)
	router.GET(RouteRefAudio, app.refAudioHandler)
	router.GET("/healthz", app.healthzHandler)

	return router
}

// applyCacheHeaders sets cache policy: static assets cacheable in
// production, everything else uncached.
func (app *App) applyCacheHeaders(c *gin.Context) {
	if app.IsProduction && strings.HasPrefix(c.Request.URL.Path, "/static/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(app.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

func startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
}
