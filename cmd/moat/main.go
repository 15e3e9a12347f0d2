package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "moat"}

	root.AddCommand(runCMD(), ingestCMD(), migrateCMD(), statsCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[MOAT] ", log.LstdFlags)
}
