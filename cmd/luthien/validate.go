package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/config"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without starting the server.

Checks YAML syntax, field values, and that the configured policy exists
and can be constructed with its settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			var verr config.ValidationError
			if errors.As(err, &verr) {
				for _, fe := range verr.Errors {
					fmt.Printf("  %s\n", fe.Error())
				}
			}
			return fmt.Errorf("configuration invalid")
		}

		reg := registry.NewWithBuiltins()
		if _, err := reg.Build(cfg.Policy.Name, cfg.Policy.Settings); err != nil {
			return fmt.Errorf("policy configuration invalid: %w", err)
		}

		fmt.Printf("%s: configuration valid\n", cfgFile)
		fmt.Printf("  listen:    %s\n", cfg.Proxy.ListenAddress)
		fmt.Printf("  providers: %d\n", len(cfg.Providers))
		fmt.Printf("  policy:    %s\n", cfg.Policy.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
