package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/egaotan/solana-lending/config"
	"github.com/egaotan/solana-lending/lender/app"
	"github.com/egaotan/solana-lending/utils"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)

	if len(os.Args) != 2 {
		panic("args is invalid")
	}
	workSpace := os.Args[1]
	if err := os.Chdir(workSpace); err != nil {
		panic(err)
	}
	workspace, _ := os.Getwd()
	fmt.Printf("work space: %s\n", workspace)

	cfg, err := config.Load(config.ConfigFile)
	if err != nil {
		panic(err)
	}
	config.LogPath = cfg.LogPath
	if err := os.MkdirAll(cfg.LogPath, os.ModePerm); err != nil {
		panic(err)
	}
	if err := utils.SetupLog(cfg.LogPath, config.ServiceLog, cfg.LogLevel); err != nil {
		panic(err)
	}

	lender, err := app.NewLender(ctx, cfg)
	if err != nil {
		panic(err)
	}
	if err := lender.Service(); err != nil {
		panic(err)
	}
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, lender is shutting down......\n", osCall)
	cancel()
}
