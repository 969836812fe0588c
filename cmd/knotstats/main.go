package main

import (
	"fmt"
	"os"
)

// 这些变量可以在构建时通过-ldflags设置
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=2025-01-01"
var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	AppName = "Knot Resolver Stats"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
