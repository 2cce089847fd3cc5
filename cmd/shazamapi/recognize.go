package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Numenorean/ShazamAPI/internal/session"
	"github.com/Numenorean/ShazamAPI/internal/shazam"
	"github.com/Numenorean/ShazamAPI/pkg/logger"
)

var (
	flagLanguage   string
	flagRegion     string
	flagTimezone   string
	flagWindow     float64
	flagOverlap    float64
	flagJSON       bool
	flagFirstMatch bool
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <file>",
	Short: "Fingerprint an audio file and stream recognition results per window",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

func init() {
	recognizeCmd.Flags().StringVar(&flagLanguage, "language", "", "request language (default from SHAZAM_LANGUAGE)")
	recognizeCmd.Flags().StringVar(&flagRegion, "region", "", "request region (default from SHAZAM_REGION)")
	recognizeCmd.Flags().StringVar(&flagTimezone, "timezone", "", "reported timezone (default from SHAZAM_TIMEZONE)")
	recognizeCmd.Flags().Float64Var(&flagWindow, "window", 0, "analysis window length in seconds")
	recognizeCmd.Flags().Float64Var(&flagOverlap, "overlap", 0, "window overlap in seconds")
	recognizeCmd.Flags().BoolVar(&flagJSON, "json", false, "print raw service responses as JSON lines")
	recognizeCmd.Flags().BoolVar(&flagFirstMatch, "first-match", false, "stop after the first matched window")

	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clientCfg := shazam.Config{
		Language: cfg.Locale.Language,
		Region:   cfg.Locale.Region,
		Timezone: cfg.Timezone,
		Timeout:  cfg.HTTPTimeout(),
		Limiter:  cfg.RateLimiter(),
	}
	if flagLanguage != "" {
		clientCfg.Language = flagLanguage
	}
	if flagRegion != "" {
		clientCfg.Region = flagRegion
	}
	if flagTimezone != "" {
		clientCfg.Timezone = flagTimezone
	}

	sessionCfg := session.Config{
		WindowDuration: cfg.WindowDuration(),
		Overlap:        cfg.Overlap(),
	}
	if cmd.Flags().Changed("window") {
		sessionCfg.WindowDuration = time.Duration(flagWindow * float64(time.Second))
	}
	if cmd.Flags().Changed("overlap") {
		sessionCfg.Overlap = time.Duration(flagOverlap * float64(time.Second))
	}

	client := shazam.NewClient(clientCfg)

	sess, err := session.NewFromFile(ctx, args[0], client, sessionCfg)
	if err != nil {
		return err
	}

	logger.Info("recognition started",
		zap.String("file", args[0]),
		zap.Duration("window", sessionCfg.WindowDuration))

	for result := range sess.All(ctx) {
		printResult(result)

		if flagFirstMatch && result.Matched() {
			break
		}
	}

	return sess.Err()
}

func printResult(result session.Result) {
	switch {
	case result.Err != nil:
		fmt.Fprintf(os.Stderr, "%7.1fs  error: %v\n", result.Offset, result.Err)
	case flagJSON:
		line, _ := json.Marshal(struct {
			Offset   float64         `json:"offset"`
			Response json.RawMessage `json:"response"`
		}{result.Offset, result.Response.Raw})
		fmt.Println(string(line))
	case result.Matched() && result.Response.Track != nil:
		fmt.Printf("%7.1fs  %s - %s\n", result.Offset, result.Response.Track.Subtitle, result.Response.Track.Title)
	case result.Matched():
		fmt.Printf("%7.1fs  matched (%s)\n", result.Offset, result.Response.Matches[0].ID)
	default:
		fmt.Printf("%7.1fs  no match\n", result.Offset)
	}
}
