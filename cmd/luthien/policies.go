package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List available policies",
	Run: func(cmd *cobra.Command, args []string) {
		reg := registry.NewWithBuiltins()
		for _, name := range reg.Names() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(policiesCmd)
}
