// RTMP relay server: process entry point

package main

import (
	"os"
	"os/signal"
	"syscall"
)

func main() {
	LogInfo("RTMP Relay Server (Version 1.0.0)")

	cfg := LoadConfig()
	server := NewServer(cfg)

	var admin *AdminServer
	if cfg.AdminAddr != "" {
		admin = newAdminServer(server)
		go func() {
			if err := admin.Start(cfg.AdminAddr); err != nil {
				LogError(err)
			}
		}()
	}

	go func() {
		if err := server.Start(); err != nil {
			LogError(err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sig

	LogInfo("shutting down")
	if admin != nil {
		admin.Stop()
	}
	server.Stop()
}
