package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"geodata-quality-service/logger"
	"geodata-quality-service/service"
	"geodata-quality-service/service/datasource"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PORT         = 80
	BASE_CONTEXT = ""
)

func init() {
	logger.InitLogger()

	if val := os.Getenv("LISTEN_PORT"); val != "" {
		PORT, _ = strconv.Atoi(val)
	}

	if val := os.Getenv("BASE_CONTEXT"); val != "" {
		BASE_CONTEXT = val
	}
}

func initRoute(mux chi.Router) {
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
}

func main() {
	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if BASE_CONTEXT != "" {
		mux.Route(BASE_CONTEXT, func(r chi.Router) {
			initRoute(r)
			r.Handle("/metrics", promhttp.Handler())
		})
	} else {
		initRoute(mux)
		mux.Handle("/metrics", promhttp.Handler())
	}

	// 可选：订阅实时测点数据用于异常监测
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		buffer := datasource.NewRealtimeTagBuffer(broker, "geodata-quality-service", 2000)
		topics := strings.Split(getEnv("MQTT_TOPICS", "geodata/tags/#"), ",")
		if err := buffer.Start(topics...); err != nil {
			log.Printf("实时测点订阅失败: %v", err)
		} else {
			defer buffer.Stop()
		}
	}

	defer service.GlobalQualityScheduler.Stop()
	defer service.GlobalDataSourceService.Close()

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(PORT), mux)
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
