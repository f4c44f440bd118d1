// Package analyze implements the "gamecalls analyze" subcommand: a
// one-shot file-based comparison of a recorded attempt against a master
// call, scoring a single WAV pair instead of driving a live session.
package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/bufferpool"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/conf"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/engine"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/wavsource"
)

const chunkSamples = 1024

// Command builds the analyze subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [master.wav] [attempt.wav]",
		Short: "Score one recorded attempt against one master call file",
		Long:  "Load two WAV files, push the attempt through the pipeline chunk by chunk against the master, and print the final composite score.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, args[0], args[1])
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func run(settings *conf.Settings, masterPath, attemptPath string) error {
	attemptFile, err := os.Open(attemptPath)
	if err != nil {
		return fmt.Errorf("analyze: opening attempt file: %w", err)
	}
	defer attemptFile.Close()
	attempt, err := wavsource.Decode(attemptFile)
	if err != nil {
		return fmt.Errorf("analyze: decoding attempt file: %w", err)
	}

	defaults := settings.EngineDefaults()
	// The engine's master loader resolves a logical name against a
	// directory; point it at masterPath's own directory so the name is
	// just its basename, and disable the feature cache so repeated runs
	// over arbitrary files never collide on a stale .mfc.
	defaults.MasterCallsPath = filepath.Dir(masterPath)
	defaults.FeaturesPath = ""
	masterName := strings.TrimSuffix(filepath.Base(masterPath), filepath.Ext(masterPath))

	pool, err := bufferpool.New(settings.BufferPoolConfig())
	if err != nil {
		return fmt.Errorf("analyze: constructing buffer pool: %w", err)
	}
	e := engine.New(defaults, pool)

	id, err := e.CreateSession(settings.SampleRateHz)
	if err != nil {
		return fmt.Errorf("analyze: creating session: %w", err)
	}
	defer e.DestroySession(id)

	if err := e.LoadMasterCall(id, masterName); err != nil {
		return fmt.Errorf("analyze: loading master call %q: %w", masterName, err)
	}

	for start := 0; start < len(attempt.Samples); start += chunkSamples {
		end := start + chunkSamples
		if end > len(attempt.Samples) {
			end = len(attempt.Samples)
		}
		if err := e.ProcessAudioChunk(id, attempt.Samples[start:end]); err != nil {
			return fmt.Errorf("analyze: processing chunk: %w", err)
		}
	}

	result, err := e.FinalizeSessionAnalysis(id)
	if err != nil {
		return fmt.Errorf("analyze: finalizing: %w", err)
	}

	fmt.Printf("overall:    %.3f\n", result.Score.Overall)
	fmt.Printf("mfcc:       %.3f\n", result.Score.MFCC)
	fmt.Printf("volume:     %.3f\n", result.Score.Volume)
	fmt.Printf("timing:     %.3f\n", result.Score.Timing)
	fmt.Printf("pitch:      %.3f\n", result.Score.Pitch)
	fmt.Printf("confidence: %.3f\n", result.Score.Confidence)
	fmt.Printf("match:      %v\n", result.Score.IsMatch)
	if result.FinalizeFallbackUsed {
		fmt.Println("note: fallback score applied (computed score was below the configured minimum)")
	}
	return nil
}
