package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(startCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the target process to pause its loop after the current iteration",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, code, err := call(http.MethodPost, "/stop")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("stop failed: %d %s", code, gjson.GetBytes(body, "error").String())
		}
		fmt.Println(gjson.GetBytes(body, "status").String())
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Resume a stopped loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, code, err := call(http.MethodPost, "/start")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("start failed: %d %s", code, gjson.GetBytes(body, "error").String())
		}
		fmt.Println(gjson.GetBytes(body, "status").String())
		return nil
	},
}
