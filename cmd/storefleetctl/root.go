// storefleetctl talks to the control API of a running fleet process.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	apiURL string
	secret string
)

var rootCmd = &cobra.Command{
	Use:   "storefleetctl",
	Short: "storefleetctl operates the seller-data fleet processes",
	Long:  `A terminal tool for inspecting and controlling workers and managers over their control API.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "http://localhost:5553", "control API URL of the target process")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "microservice secret key")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))
	viper.BindEnv("secret", "MICROSERVICE_SECRET_KEY")
	viper.AutomaticEnv()
}

// call hits one control endpoint and returns the response body.
func call(method, path string) ([]byte, int, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, viper.GetString("url")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if key := viper.GetString("secret"); key != "" {
		req.Header.Set("authorization-microservice", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
