package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the target process's loop state",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, code, err := call(http.MethodGet, "/status")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("status request failed: %d %s", code, gjson.GetBytes(body, "error").String())
		}

		fmt.Printf("Service:  %s (v%s)\n",
			gjson.GetBytes(body, "service").String(),
			gjson.GetBytes(body, "version").String())
		fmt.Printf("Running:  %v\n", gjson.GetBytes(body, "running").Bool())
		fmt.Printf("Last:     %s\n", gjson.GetBytes(body, "last_response").String())
		if stores := gjson.GetBytes(body, "stores"); stores.Exists() {
			fmt.Printf("Stores:   %d\n", stores.Int())
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the target process's liveness endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, code, err := call(http.MethodGet, "/health")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("health probe failed: %d", code)
		}
		fmt.Printf("%s: %s\n",
			gjson.GetBytes(body, "service").String(),
			gjson.GetBytes(body, "status").String())
		return nil
	},
}
