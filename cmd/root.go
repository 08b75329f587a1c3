/*
Package cmd implements the command-line interface for the mediagen
service.  It provides commands for running the agent server and for
driving it as a client.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the
service, which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

var (
	projectName = "mediagen"
	cfgFile     string

	rootCmd = &cobra.Command{
		Use:   "mediagen",
		Short: "An A2A agent that turns prompts into images, video, and audio",
		Long:  longRoot,
	}
)

/*
Execute is the main entry point for the mediagen CLI.  It initializes
the root command and executes it.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)
}

/*
initConfig writes the default config file to the user's home directory
if it doesn't exist, then reads it back through viper.  A local .env is
loaded first so provider keys are in place before anything dials out.
*/
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not load .env", "error", err)
	}

	if err := writeConfig(); err != nil {
		log.Fatal("could not write default config", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("could not read config", "error", err)
	}
}

/*
writeConfig copies the embedded default config into the user's config
directory, skipping files that already exist.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName

	if !checkFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	for _, file := range []string{cfgFile} {
		fullPath := configDir + "/" + file

		if checkFileExists(fullPath) {
			continue
		}

		if fh, err = embedded.Open("cfg/" + file); err != nil {
			return fmt.Errorf("failed to open embedded config file: %w", err)
		}

		if _, err = io.Copy(&buf, fh); err != nil {
			fh.Close()
			return fmt.Errorf("failed to read embedded config file: %w", err)
		}

		if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write config file: %w", err)
		}

		log.Info("wrote config file", "path", fullPath)
		buf.Reset()
		fh.Close()
	}

	return nil
}

func checkFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

var longRoot = `
mediagen is an A2A (Agent-to-Agent) service that generates media from
text prompts.  It accepts tasks over JSON-RPC, runs them through typed
skill workers (text2image, text2video, text2audio), and streams progress
back over SSE or webhooks.
`
