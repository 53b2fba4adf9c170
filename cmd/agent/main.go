package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mezmer90/youtube-commenting-automation/internal/ai"
	"github.com/mezmer90/youtube-commenting-automation/internal/backend"
	"github.com/mezmer90/youtube-commenting-automation/internal/browser"
	"github.com/mezmer90/youtube-commenting-automation/internal/notion"
	"github.com/mezmer90/youtube-commenting-automation/internal/store"
	"github.com/mezmer90/youtube-commenting-automation/internal/workflow"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"backend"`

	Browser struct {
		Headless bool `yaml:"headless"`
	} `yaml:"browser"`

	Storage struct {
		Database string `yaml:"database"`
	} `yaml:"storage"`

	Notion struct {
		ParentPageID string `yaml:"parent_page_id"`
	} `yaml:"notion"`

	Promo struct {
		Enabled         bool    `yaml:"enabled"`
		AllowNone       bool    `yaml:"allow_none"`
		SkipProbability float64 `yaml:"skip_probability"`
	} `yaml:"promo"`

	Workflow struct {
		AutoAdvanceDelaySeconds int `yaml:"auto_advance_delay_seconds"`
	} `yaml:"workflow"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Secrets come from the environment; .env is optional for local runs
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	// Local state database
	stateStore, err := store.Open(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize state database: %v", err)
	}
	defer stateStore.Close()

	// Browser tab
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	tab, cancelTab, err := browser.NewClient(rootCtx, config.Browser.Headless)
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer cancelTab()

	// Backend and AI clients share the same service
	backendClient := backend.NewClient(config.Backend.BaseURL)
	aiClient := ai.NewClient(config.Backend.BaseURL)

	// Notion client (optional - archiving is skipped without an API key)
	var archiver workflow.Archiver
	notionKey := os.Getenv("NOTION_API_KEY")
	if notionKey != "" && config.Notion.ParentPageID != "" {
		archiver = notion.NewClient(notionKey)
		log.Println("Notion archiving enabled")
	} else {
		log.Println("NOTION_API_KEY or parent page not set - Notion archiving disabled")
	}

	// Event hub for the WebSocket progress feed
	hub := &EventHub{conns: make(map[*websocket.Conn]bool)}

	// Workflow coordinator
	coordinator := workflow.New(tab, backendClient, aiClient, archiver, stateStore, workflow.Config{
		Promo: workflow.PromoConfig{
			Enabled:         config.Promo.Enabled,
			AllowNone:       config.Promo.AllowNone,
			SkipProbability: config.Promo.SkipProbability,
		},
		NotionParentPageID: config.Notion.ParentPageID,
		AutoAdvanceDelay:   time.Duration(config.Workflow.AutoAdvanceDelaySeconds) * time.Second,
	}, hub.Broadcast)

	// Create Fiber app
	app := fiber.New()

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/process-next", func(c *fiber.Ctx) error {
		var req struct {
			CategoryID int  `json:"category_id"`
			Auto       bool `json:"auto"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.CategoryID == 0 {
			req.CategoryID, _ = stateStore.SelectedCategory()
		}

		result, err := coordinator.ProcessNext(c.Context(), req.CategoryID, req.Auto)
		if err != nil {
			status := 500
			switch {
			case errors.Is(err, workflow.ErrAlreadyProcessing):
				status = 409
			case errors.Is(err, workflow.ErrNoPendingVideos):
				status = 404
			case errors.Is(err, workflow.ErrNotLoggedIn):
				status = 412
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(result)
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		processing, err := stateStore.IsProcessing()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		category, _ := stateStore.SelectedCategory()
		return c.JSON(fiber.Map{
			"processing":        processing,
			"selected_category": category,
		})
	})

	app.Post("/category", func(c *fiber.Ctx) error {
		var req struct {
			CategoryID int `json:"category_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.CategoryID <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "category_id is required"})
		}
		if err := stateStore.SetSelectedCategory(req.CategoryID); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"selected_category": req.CategoryID})
	})

	app.Get("/categories", func(c *fiber.Ctx) error {
		categories, err := backendClient.GetCategories(c.Context())
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"categories": categories})
	})

	app.Get("/progress/daily", func(c *fiber.Ctx) error {
		local, err := stateStore.DailyProgress()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		resp := fiber.Map{"local": local}
		if remote, err := backendClient.GetDailyProgress(c.Context()); err == nil {
			resp["backend"] = remote
		}
		return c.JSON(resp)
	})

	app.Get("/promo", func(c *fiber.Ctx) error {
		texts, err := stateStore.PromoTexts()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if len(texts) == 0 {
			texts = workflow.DefaultPromoTexts
		}
		return c.JSON(fiber.Map{"promo_texts": texts})
	})

	app.Post("/promo", func(c *fiber.Ctx) error {
		var req struct {
			PromoTexts []string `json:"promo_texts"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := stateStore.SetPromoTexts(req.PromoTexts); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"promo_texts": req.PromoTexts})
	})

	// WebSocket route
	app.Get("/ws/events", websocket.New(hub.Handle))

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Agent starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /process-next   - Process the next pending video")
	log.Println("   GET  /status         - Processing flag and selected category")
	log.Println("   POST /category       - Select the active category")
	log.Println("   GET  /categories     - List backend categories")
	log.Println("   GET  /progress/daily - Daily processed-video counters")
	log.Println("   GET  /promo          - Current promo pool")
	log.Println("   POST /promo          - Replace promo pool")
	log.Println("   GET  /ws/events      - WebSocket workflow progress feed")
	log.Println("   GET  /logs           - View agent logs")
	log.Println("   GET  /health         - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		cancelRoot()
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// EventHub fans workflow events out to connected WebSocket clients.
type EventHub struct {
	conns map[*websocket.Conn]bool
	mu    sync.Mutex
}

// Handle keeps the connection registered until the peer closes it.
func (h *EventHub) Handle(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		c.Close()
	}()

	// Reads only serve to detect disconnects; clients never send data.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends an event to every connected client. Failed writes drop the
// connection.
func (h *EventHub) Broadcast(ev workflow.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(ev); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
