package main

import (
	"net/http"

	"github.com/rs/cors"
)

func setupServer(config *Config, services *Services) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	addr := config.Gateway.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	return &http.Server{
		Addr:    addr,
		Handler: c.Handler(services.Gateway.Handler()),
	}
}
