// Package wavfile wraps renderer PCM in a WAV container.
package wavfile

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// BitDepth of the PCM the engine produces.
const BitDepth = 8

const (
	channels  = 1
	formatPCM = 1
	memName   = "utterance.wav"
)

// Encode returns pcm as a complete WAV file. The encoder needs to seek back
// to finish the header, so the file is built on an in-memory filesystem.
func Encode(pcm []byte, sampleRate int) ([]byte, error) {
	fs := afero.NewMemMapFs()
	if err := WriteFile(fs, memName, pcm, sampleRate); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, memName)
	if err != nil {
		return nil, fmt.Errorf("read encoded wav: %w", err)
	}
	return data, nil
}

// WriteFile writes pcm as a WAV file at path on fs.
func WriteFile(fs afero.Fs, path string, pcm []byte, sampleRate int) error {
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file, pcm, sampleRate); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func write(w io.WriteSeeker, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	samples := make([]int, len(pcm))
	for i, b := range pcm {
		samples[i] = int(b)
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}

	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, formatPCM)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
