package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DumpWAV writes raw 16-bit mono PCM to path as a standard RIFF/WAV file.
// Used by the debug-capture feature to archive each completed utterance for
// offline inspection of recognition quality.
func DumpWAV(path string, pcm []byte, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav %s: %w", path, err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	n := len(pcm) / 2
	data := make([]int, n)
	for i := range n {
		data[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("audio: write wav %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: close wav %s: %w", path, err)
	}
	return nil
}
