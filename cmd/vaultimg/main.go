package main

import (
	"fmt"

	"github.com/vaultimg/vaultimg/cmd/cli"
	"github.com/vaultimg/vaultimg/internal/buildinfo"
)

func main() {
	printBanner()

	_ = cli.Execute()
}

func printBanner() {
	fmt.Println(" __   __           _ _   _                 ")
	fmt.Println(" \\ \\ / /_ _ _   _| | |_(_)_ __ ___   __ _ ")
	fmt.Println("  \\ V / _` | | | | | __| | '_ ` _ \\ / _` |")
	fmt.Println("   | | (_| | |_| | | |_| | | | | | | (_| |")
	fmt.Println("   |_|\\__,_|\\__,_|_|\\__|_|_| |_| |_|\\__, |")
	fmt.Println("                                     |___/ ")
	fmt.Println()
	fmt.Println("Encrypted firmware container decryption and recovery tool")
	fmt.Println()
	fmt.Printf("Version:    %s\n", buildinfo.Version)
	fmt.Printf("Commit:     %s\n", buildinfo.CommitHash)
	fmt.Printf("Build Time: %s\n", buildinfo.BuildTime)
	fmt.Println()
}
