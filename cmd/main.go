package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/canasat/internal/notification"
	"github.com/forest-guardian/canasat/internal/properties"
	"github.com/forest-guardian/canasat/internal/ui"
	"github.com/spf13/viper"
)

func printBanner() {
	bannercolor.Cyan(figure.NewFigure("Canasat", "isometric1", true).String())
	fmt.Println()
}

// reportPanic prints the panic in red and forwards it to the error webhook.
func reportPanic(r any) {
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	red := bannercolor.New(bannercolor.FgRed)
	red.Printf("\nPANIC: %v\n", r)
	red.Printf("Location: %s\n", location)
	red.Println("Please check the input and try again.")
	red.Println("Exiting...")

	message := fmt.Sprintf("Canasat CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	url := viper.GetString("discord.error_url")
	if url == "" {
		url = os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
	}
	discord := notification.NewDiscord(url, "")
	if err := discord.SendError(context.Background(), message); err != nil {
		red.Printf("Failed to send notification: %s\n", err.Error())
	}
}

func main() {
	exitCode := 0
	defer func() {
		if r := recover(); r != nil {
			reportPanic(r)
			exitCode = 2
		}
		os.Exit(exitCode)
	}()

	properties.LoadEnv()
	if len(os.Args) == 1 {
		printBanner()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ui.Execute(ctx); err != nil {
		exitCode = 1
	}
}
