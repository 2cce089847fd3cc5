package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Numenorean/ShazamAPI/internal/dsp"
	"github.com/Numenorean/ShazamAPI/internal/pcm"
	"github.com/Numenorean/ShazamAPI/internal/signature"
)

var (
	flagSigWindow float64
	flagSigJSON   bool
)

var signatureCmd = &cobra.Command{
	Use:   "signature <file>",
	Short: "Print each window's acoustic signature without calling the service",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignature,
}

func init() {
	signatureCmd.Flags().Float64Var(&flagSigWindow, "window", 0, "analysis window length in seconds")
	signatureCmd.Flags().BoolVar(&flagSigJSON, "json", false, "print decoded signatures as JSON instead of data URIs")

	rootCmd.AddCommand(signatureCmd)
}

func runSignature(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	buf, err := pcm.DecodeFile(ctx, args[0])
	if err != nil {
		return err
	}

	window := cfg.WindowDuration()
	if cmd.Flags().Changed("window") {
		window = time.Duration(flagSigWindow * float64(time.Second))
	}
	windowSamples := int(window.Seconds() * float64(buf.SampleRate))
	if windowSamples <= 0 {
		return fmt.Errorf("window must be positive")
	}

	encoder := json.NewEncoder(os.Stdout)
	for start := 0; start < len(buf.Samples); start += windowSamples {
		end := start + windowSamples
		if end > len(buf.Samples) {
			end = len(buf.Samples)
		}

		gen := dsp.NewGenerator()
		gen.Feed(buf.Samples[start:end])
		sig, err := gen.Flush()
		if err != nil {
			return err
		}

		offset := float64(start) / float64(buf.SampleRate)
		if flagSigJSON {
			if err := encoder.Encode(describeSignature(offset, sig)); err != nil {
				return err
			}
			continue
		}

		uri, err := sig.EncodeToURI()
		if err != nil {
			return err
		}
		fmt.Printf("%7.1fs  %s\n", offset, uri)
	}

	return nil
}

type signatureDump struct {
	Offset       float64               `json:"offset"`
	SampleRateHz int                   `json:"sample_rate_hz"`
	NumSamples   int                   `json:"number_samples"`
	Seconds      float64               `json:"seconds"`
	Bands        map[string][]peakDump `json:"bands"`
}

type peakDump struct {
	Pass         int     `json:"fft_pass_number"`
	Magnitude    uint16  `json:"peak_magnitude"`
	Bin          uint16  `json:"corrected_peak_frequency_bin"`
	FrequencyHz  float64 `json:"frequency_hz"`
	AmplitudePCM float64 `json:"amplitude_pcm"`
	Seconds      float64 `json:"seconds"`
}

func describeSignature(offset float64, sig *signature.Signature) signatureDump {
	dump := signatureDump{
		Offset:       offset,
		SampleRateHz: sig.SampleRate,
		NumSamples:   sig.NumSamples,
		Seconds:      sig.Seconds(),
		Bands:        make(map[string][]peakDump),
	}

	for band := signature.Band(0); band < signature.NumBands; band++ {
		peaks := sig.Peaks[band]
		if len(peaks) == 0 {
			continue
		}

		dumped := make([]peakDump, 0, len(peaks))
		for _, p := range peaks {
			dumped = append(dumped, peakDump{
				Pass:         p.Pass,
				Magnitude:    p.Magnitude,
				Bin:          p.Bin,
				FrequencyHz:  p.FrequencyHz(sig.SampleRate),
				AmplitudePCM: p.AmplitudePCM(),
				Seconds:      p.Seconds(sig.SampleRate),
			})
		}
		dump.Bands[band.String()] = dumped
	}

	return dump
}
