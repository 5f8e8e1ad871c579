package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"kreisel-backend/internal/lending/items"
	"kreisel-backend/internal/lending/rentals"
	"kreisel-backend/internal/lending/reports"
	"kreisel-backend/internal/lending/reviews"
	"kreisel-backend/internal/platform/auth"
	"kreisel-backend/internal/platform/db"
	"kreisel-backend/internal/platform/web"
	"kreisel-backend/internal/users"
)

// @title    Kreisel Backend API
// @version  1.0
// @BasePath /api/v1
func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	defer rdb.Close()

	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), web.RequestID())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(web.DevCORS())
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// サービス組み立て
	deny := auth.NewRedisDenylist(rdb)
	secret := []byte(cfg.Auth.JWTSecret)
	authSvc := auth.NewService(auth.NewStore(conn), deny, secret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	itemSvc := items.NewService(items.NewStore(conn))
	rentalSvc := rentals.NewService(rentals.NewStore(conn), cfg.Rental)
	reviewSvc := reviews.NewService(reviews.NewStore(conn), rentalSvc)
	userSvc := users.NewService(users.NewStore(conn))
	reportSvc := reports.NewService(reports.NewStore(conn))

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, authSvc)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(secret, deny))

	admin := protected.Group("")
	admin.Use(auth.RequireRole(auth.RoleAdmin))

	items.RegisterRoutes(protected, admin, itemSvc)
	rentals.RegisterRoutes(protected, admin, rentalSvc)
	reviews.RegisterRoutes(protected, reviewSvc)
	users.RegisterRoutes(protected, admin, userSvc)
	reports.RegisterRoutes(admin, reportSvc)

	// 期限切れ貸出の自動クローズ
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := rentals.NewSweeper(rentalSvc,
		time.Duration(cfg.Rental.SweepIntervalMinutes)*time.Minute)
	go sweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on http://0.0.0.0:%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
