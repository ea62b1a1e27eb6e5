// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"pitchcv/internal/config"
	"pitchcv/internal/tracker"
	"pitchcv/pkg/utils"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM = 1
	renderChunk  = 4096 // frames decoded per PCMBuffer call
)

var (
	ErrInvalidWAV        = errors.New("not a valid WAV file")
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// RenderOptions controls offline rendering. Zero values pick defaults.
type RenderOptions struct {
	CVScale  float64 // volts to full scale, default config.DefaultCVScale
	BitDepth int     // output bit depth (16 or 24), default 16
	Channel  int     // input channel fed to the tracker
}

// RenderSummary describes a finished render.
type RenderSummary struct {
	Frames     int
	SampleRate int
	Duration   time.Duration
	Analyses   uint64
	Changes    int // frames on which the CV differed from the previous frame
	MinCV      float64
	MaxCV      float64
	FinalCV    float64
}

// Render runs every frame of the WAV read from in through tr and writes a
// two channel WAV (scaled CV, indicator) to out at the input's sample rate.
// tr keeps its state, so a fresh tracker gives a render from power-on.
func Render(in io.ReadSeeker, out io.WriteSeeker, tr *tracker.Tracker, opts RenderOptions) (RenderSummary, error) {
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return RenderSummary{}, ErrInvalidWAV
	}

	channels := int(dec.NumChans)
	srcDepth := int(dec.BitDepth)
	rate := int(dec.SampleRate)
	switch {
	case dec.WavAudioFormat != wavFormatPCM:
		return RenderSummary{}, fmt.Errorf("%w: audio format %d (integer PCM only)", ErrUnsupportedFormat, dec.WavAudioFormat)
	case srcDepth != 16 && srcDepth != 24 && srcDepth != 32:
		return RenderSummary{}, fmt.Errorf("%w: %d-bit", ErrUnsupportedFormat, srcDepth)
	case opts.Channel < 0 || opts.Channel >= channels:
		return RenderSummary{}, fmt.Errorf("channel %d out of range for %d-channel input", opts.Channel, channels)
	}

	cvScale := opts.CVScale
	if cvScale == 0 {
		cvScale = config.DefaultCVScale
	}
	bitDepth, err := outputBitDepth(opts.BitDepth)
	if err != nil {
		return RenderSummary{}, err
	}

	enc := wav.NewEncoder(out, rate, bitDepth, recordingChannels, wavFormatPCM)
	inBuf := &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, renderChunk*channels),
	}
	outBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: recordingChannels, SampleRate: rate},
		Data:           make([]int, renderChunk*recordingChannels),
		SourceBitDepth: bitDepth,
	}

	inFull, outFull := fullScale(srcDepth), fullScale(bitDepth)
	sampleRate := float64(rate)
	dt := 1 / sampleRate
	startAnalyses := tr.Reading().Analyses

	summary := RenderSummary{SampleRate: rate, MinCV: math.Inf(1), MaxCV: math.Inf(-1)}
	prev := math.NaN()

	for {
		n, err := dec.PCMBuffer(inBuf)
		if err != nil {
			return summary, fmt.Errorf("failed to decode input: %w", err)
		}
		if n == 0 {
			break
		}

		frames := n / channels
		for i := range frames {
			o := tr.Process(tracker.Input{
				Sample:     float64(inBuf.Data[i*channels+opts.Channel]) / inFull,
				SampleRate: sampleRate,
				TimeStep:   dt,
			})
			outBuf.Data[2*i] = quantize(o.ControlVoltage*cvScale, outFull)
			outBuf.Data[2*i+1] = quantize(o.Indicator, outFull)

			cv := o.ControlVoltage
			if cv != prev && summary.Frames+i > 0 {
				summary.Changes++
			}
			prev = cv
			summary.MinCV = min(summary.MinCV, cv)
			summary.MaxCV = max(summary.MaxCV, cv)
		}
		summary.Frames += frames

		outBuf.Data = outBuf.Data[:frames*recordingChannels]
		if err := enc.Write(outBuf); err != nil {
			return summary, fmt.Errorf("failed to encode output: %w", err)
		}
		outBuf.Data = outBuf.Data[:cap(outBuf.Data)]
	}

	if err := enc.Close(); err != nil {
		return summary, fmt.Errorf("failed to finalize output: %w", err)
	}

	if summary.Frames == 0 {
		summary.MinCV, summary.MaxCV = 0, 0
	}
	summary.FinalCV = tr.Reading().ControlVoltage
	summary.Analyses = tr.Reading().Analyses - startAnalyses
	summary.Duration = time.Duration(float64(summary.Frames) / sampleRate * float64(time.Second))
	return summary, nil
}

// RenderFile is Render on file paths.
func RenderFile(inPath, outPath string, tr *tracker.Tracker, opts RenderOptions) (RenderSummary, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return RenderSummary{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return RenderSummary{}, fmt.Errorf("failed to create output: %w", err)
	}

	summary, err := Render(in, out, tr, opts)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	if err != nil {
		return summary, fmt.Errorf("render %s: %w", inPath, err)
	}

	logger.Infof("rendered %s -> %s (%d frames, %d analyses, cv %.3f..%.3f V)",
		inPath, outPath, summary.Frames, summary.Analyses, summary.MinCV, summary.MaxCV)
	return summary, nil
}

// WriteTone writes a mono sine test tone.
func WriteTone(out io.WriteSeeker, sampleRate int, frequency, amplitude float64, duration time.Duration, bitDepth int) error {
	if sampleRate <= 0 || !(frequency > 0) || duration <= 0 {
		return fmt.Errorf("invalid tone: %d Hz sample rate, %g Hz, %s", sampleRate, frequency, duration)
	}
	bitDepth, err := outputBitDepth(bitDepth)
	if err != nil {
		return err
	}

	total := int(duration.Seconds() * float64(sampleRate))
	enc := wav.NewEncoder(out, sampleRate, bitDepth, 1, wavFormatPCM)
	chunk := make([]float64, renderChunk)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, renderChunk),
		SourceBitDepth: bitDepth,
	}
	full := fullScale(bitDepth)

	for offset := 0; offset < total; offset += renderChunk {
		n := min(renderChunk, total-offset)
		utils.FillSineWave(chunk[:n], offset, float64(sampleRate), frequency, amplitude)
		for i, s := range chunk[:n] {
			buf.Data[i] = quantize(s, full)
		}
		buf.Data = buf.Data[:n]
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write tone: %w", err)
		}
		buf.Data = buf.Data[:cap(buf.Data)]
	}
	return enc.Close()
}

// outputBitDepth maps 0 to the default and accepts 16 or 24.
func outputBitDepth(bitDepth int) (int, error) {
	switch bitDepth {
	case 0:
		return config.DefaultRecordingBitDepth, nil
	case 16, 24:
		return bitDepth, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit output (16 or 24)", ErrUnsupportedFormat, bitDepth)
	}
}

// fullScale is the largest positive sample at bitDepth.
func fullScale(bitDepth int) float64 {
	return float64(int64(1)<<(bitDepth-1) - 1)
}

func quantize(v, full float64) int {
	return int(math.Round(clampUnit(v) * full))
}

func clampUnit(v float64) float64 {
	return min(max(v, -1), 1)
}
