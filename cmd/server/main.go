package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sensei-lms/dataport/internal/api"
	"github.com/sensei-lms/dataport/internal/auth"
	"github.com/sensei-lms/dataport/internal/config"
	"github.com/sensei-lms/dataport/internal/filestore"
	"github.com/sensei-lms/dataport/internal/jobstore"
	"github.com/sensei-lms/dataport/internal/porter"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "dataport.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Durable job storage
	jobs, err := jobstore.Open(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Printf("Failed to open job database: %v\n", err)
		os.Exit(1)
	}

	// Job-scoped file storage
	files, err := filestore.New(cfg.Storage.UploadsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize file storage: %v\n", err)
		os.Exit(1)
	}

	manager := porter.NewManager(jobs, files, fileRules(cfg), &porter.LineRunner{})
	provider := auth.NewTokenProvider(cfg.Auth.Tokens)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Status polling and health checks would drown the log.
			path := c.Request().URL.Path
			if path == "/health" {
				return true
			}
			return c.Request().Method == http.MethodGet && path == api.APIBasePath+"/import"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	api.RegisterRoutes(e, &api.Dependencies{
		Jobs:    manager,
		Auth:    provider,
		Version: Version,
	})

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("LMS data-port service %s (built %s)\n", Version, BuildTime)
	fmt.Printf("Listening on http://%s%s\n", cfg.GetServerAddr(), api.APIBasePath)
	fmt.Printf("Data dir: %s\n", cfg.Storage.DataDirectory)

	e.Logger.Fatal(e.StartServer(s))
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist. An explicitly provided path must exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "dataport.yaml" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

func fileRules(cfg *config.Config) map[string]filestore.Rule {
	rules := make(map[string]filestore.Rule, len(cfg.Import.FileKeys))
	for key, fk := range cfg.Import.FileKeys {
		rules[key] = filestore.Rule{
			Extensions:   fk.Extensions,
			ContentTypes: fk.ContentTypes,
		}
	}
	return rules
}
