// Package realtime implements the "gamecalls realtime" subcommand: it
// wires a live capture device into one engine session and prints the
// composite score as it updates.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/capture"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/conf"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/engine"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/ringbuffer"
)

var (
	masterCall string
	deviceName string
)

// Command builds the realtime subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Score live microphone audio against a loaded master call",
		Long:  "Capture from a host audio device and stream the composite similarity score as each chunk is processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
			go func() {
				<-sigChan
				fmt.Println("\nreceived interrupt, shutting down")
				cancel()
			}()

			return run(ctx, settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().StringVar(&masterCall, "master-call", "", "Logical name of the master call to score against")
	cmd.Flags().StringVar(&deviceName, "device", "", "Capture device name, empty selects the system default")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings) error {
	pool, err := bufferpool.New(settings.BufferPoolConfig())
	if err != nil {
		return fmt.Errorf("realtime: constructing buffer pool: %w", err)
	}

	e := engine.New(settings.EngineDefaults(), pool)

	id, err := e.CreateSession(settings.SampleRateHz)
	if err != nil {
		return fmt.Errorf("realtime: creating session: %w", err)
	}
	defer e.DestroySession(id)

	if masterCall != "" {
		if err := e.LoadMasterCall(id, masterCall); err != nil {
			return fmt.Errorf("realtime: loading master call %q: %w", masterCall, err)
		}
	}

	ring, err := ringbuffer.New(settings.RingBuffer.Capacity)
	if err != nil {
		return fmt.Errorf("realtime: constructing ring buffer: %w", err)
	}

	device, err := capture.New(capture.Config{
		DeviceName:      deviceName,
		SampleRateHz:    settings.SampleRateHz,
		VoicedThreshold: 0.01,
	}, ring, pool)
	if err != nil {
		return fmt.Errorf("realtime: constructing capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("realtime: starting capture device: %w", err)
	}
	defer device.Stop()

	runner := capture.NewRunner(ring, func(samples []float32) error {
		if err := e.ProcessAudioChunk(id, samples); err != nil {
			return err
		}
		if masterCall == "" {
			return nil
		}
		score, err := e.SimilarityScore(id)
		if err != nil {
			return nil // no score available (e.g. no master loaded); keep draining
		}
		fmt.Printf("\rscore=%.3f confidence=%.3f match=%v", score.Overall, score.Confidence, score.IsMatch)
		return nil
	}, 50*time.Millisecond)

	err = runner.Run(ctx)
	fmt.Println()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
