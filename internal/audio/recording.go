// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrAlreadyRecording = errors.New("already recording")

// recordingChannels is the CV/indicator pair.
const recordingChannels = 2

// RecordingFilename returns the default name for a recording started at t.
func RecordingFilename(t time.Time) string {
	return "cv-" + t.Format("02-01-2006-150405") + ".wav"
}

// StartRecording writes the tracker's CV (channel 0, scaled by cv_scale)
// and indicator (channel 1) to a WAV file until StopRecording.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.isRecording.Load() {
		return ErrAlreadyRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}

	e.outputFile = file
	e.wavEncoder = wav.NewEncoder(file, int(e.sampleRate), e.bitDepth, recordingChannels, wavFormatPCM)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: recordingChannels,
			SampleRate:  int(e.sampleRate),
		},
		Data:           make([]int, len(e.cvBuf)*recordingChannels),
		SourceBitDepth: e.bitDepth,
	}

	e.isRecording.Store(true)
	logger.Infof("recording to %s (%d-bit)", filename, e.bitDepth)
	return nil
}

// StopRecording finalizes the WAV header and closes the file. It is a no-op
// when not recording.
func (e *Engine) StopRecording() error {
	if !e.isRecording.Swap(false) {
		return nil
	}

	e.recMu.Lock()
	defer e.recMu.Unlock()

	var errs []error
	if e.wavEncoder != nil {
		errs = append(errs, e.wavEncoder.Close())
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		logger.Infof("recording saved to %s", e.outputFile.Name())
		errs = append(errs, e.outputFile.Close())
		e.outputFile = nil
	}
	return errors.Join(errs...)
}

// IsRecording reports whether a recording is in progress.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

// record encodes the first frames of cvBuf and lightBuf. It is called from
// the stream callback and skips the buffer instead of waiting when a
// Start/Stop holds the lock.
func (e *Engine) record(frames int) {
	if !e.recMu.TryLock() {
		return
	}
	defer e.recMu.Unlock()

	if e.wavEncoder == nil {
		return
	}

	full := fullScale(e.bitDepth)
	for i := range frames {
		e.sampleBuf.Data[2*i] = quantize(e.cvBuf[i]*e.cvScale, full)
		e.sampleBuf.Data[2*i+1] = quantize(e.lightBuf[i], full)
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:frames*recordingChannels]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		logger.Errorf("error writing recording: %v", err)
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
}
