package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"Jaffre/config"
	"Jaffre/internal/auth"
	"Jaffre/internal/game/bot"
	"Jaffre/internal/game/manager"
	"Jaffre/internal/matchmaker"
	"Jaffre/internal/middleware"
	"Jaffre/internal/storage"
	"Jaffre/internal/utils"
	"Jaffre/internal/websocket"
)

func main() {
	path := os.Getenv("JAFFRE_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	if err := config.Load(path); err != nil {
		utils.Log.Fatal("config load failed", "path", path, "err", err)
	}
	utils.Init(config.C.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 初始化存储（Redis / Postgres 按需）
	//-------------------------------------------------------
	needRedis := config.C.Store.Driver == "redis" || config.C.Matchmaker.Driver == "redis"
	if needRedis {
		if err := storage.InitRedis(
			config.C.Redis.Addr,
			config.C.Redis.Password,
			config.C.Redis.DB,
		); err != nil {
			utils.Log.Fatal("redis init failed", "err", err)
		}
	}

	var store storage.SnapshotStore
	switch config.C.Store.Driver {
	case "redis":
		store = storage.NewRedisStore(storage.Rdb, config.C.Store.TTL)
	case "postgres":
		if err := storage.InitPostgres(config.C.Database.DSN); err != nil {
			utils.Log.Fatal("postgres init failed", "err", err)
		}
		pg := storage.NewPostgresStore(storage.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			utils.Log.Fatal("postgres schema failed", "err", err)
		}
		store = pg
	case "memory", "":
		store = storage.NewMemoryStore()
	default:
		utils.Log.Fatal("unknown store driver", "driver", config.C.Store.Driver)
	}

	decider, err := bot.NewDecider(config.C.Bot.Kind, config.C.Bot.Script, config.C.Bot.Seed)
	if err != nil {
		utils.Log.Fatal("bot init failed", "err", err)
	}

	//-------------------------------------------------------
	// 2. 初始化 Gin + CORS
	//-------------------------------------------------------
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.AdminHeader},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. 初始化 Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()

	//-------------------------------------------------------
	// 4. 初始化 GameManager（用来启动 Engine）
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(hub,
		manager.WithStore(store),
		manager.WithConfig(config.C.EngineConfig()),
		manager.WithRules(config.C.Rules()),
		manager.WithDecider(decider),
	)
	hub.OnIncoming = gameMgr.HandlePlayerMessage
	go hub.Run()

	if _, err := gameMgr.Restore(ctx); err != nil {
		utils.Log.Error("restore failed", "err", err)
	}

	//-------------------------------------------------------
	// 5. 初始化匹配系统 Matchmaker
	//-------------------------------------------------------
	var repo matchmaker.Repo
	if config.C.Matchmaker.Driver == "redis" {
		repo = matchmaker.NewRedisRepo(storage.Rdb)
	} else {
		repo = matchmaker.NewMemoryRepo()
	}
	svc := matchmaker.NewService(repo, config.C.Matchmaker.PlayerTTL, hub)
	svc.InGame = func(addr string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return gameMgr.InGame(ctx, addr)
	}

	// 💡 成桌回调：RoomReady
	svc.OnRoomReady = func(room *matchmaker.Room) {
		// 让 GameManager 接手并启动 Engine
		if err := gameMgr.StartRoom(room); err != nil {
			utils.Log.Error("start room failed", "room", room.ID, "err", err)
		}
	}

	//-------------------------------------------------------
	// 6. 路由
	//-------------------------------------------------------
	var nonces auth.NonceStore = auth.NewMemoryNonces()
	if needRedis {
		nonces = auth.NewRedisNonces(storage.Rdb)
	}
	secret := []byte(config.C.JWT.Secret)
	auth.NewHandler(nonces, secret, config.C.JWT.TTL).Register(r.Group("/auth"))

	player := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		player.GET("/ws", websocket.ServeWS(hub))
		matchmaker.NewHandler(svc).Register(player)
	}
	admin := r.Group("/admin", middleware.AdminAuth(config.C.Server.AdminToken))
	manager.NewHandler(gameMgr).Register(player, admin)

	//-------------------------------------------------------
	// 7. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{Addr: config.C.Server.Port, Handler: r}
	go func() {
		utils.Log.Info("server running", "addr", config.C.Server.Port, "store", config.C.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	utils.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	hub.Close()
}
