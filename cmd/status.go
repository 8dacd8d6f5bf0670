package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured provider rate limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}

		providers := a.limiter.Providers()
		if len(providers) == 0 {
			fmt.Println("No rate limits configured; all providers unmetered.")
			return nil
		}

		fmt.Printf("%-14s %-10s %8s %8s %10s\n", "Provider", "Window", "Used", "Limit", "Remaining")
		for _, p := range providers {
			for _, w := range a.limiter.Status(p) {
				fmt.Printf("%-14s %-10s %8d %8d %10d\n",
					p, w.Granularity, w.Used, w.Limit, w.Remaining)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
