package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-authgate/memberguard/internal/bootstrap"
	"github.com/go-authgate/memberguard/internal/cli"
	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.Print(os.Stdout)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "server":
		runServer()
	case "member":
		runMember(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Single-device member sessions")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the membership backend")
	fmt.Println("  member    Run a member client command (see `member help`)")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	if err := bootstrap.Run(context.Background(), config.Load()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func runMember(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Run(ctx, args, os.Stdin, os.Stdout)
	if err == nil {
		return
	}
	if !errors.Is(err, cli.ErrUsage) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	os.Exit(1)
}
