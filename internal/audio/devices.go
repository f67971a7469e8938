//go:build portaudio

package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

var errNoInputDevice = errors.New("no matching audio input device, list the devices using -list-devices")

// inputDevice resolves a device by its index or by a part of its name.
// An empty selector returns the default input device.
// Must be called after portaudio.Initialize.
func inputDevice(selector string) (*portaudio.DeviceInfo, error) {
	if selector == "" {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("get default audio input device: %w", err)
		}
		return d, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	var d *portaudio.DeviceInfo

	if id, err := strconv.Atoi(selector); err == nil {
		if id < 0 || id >= len(devices) {
			return nil, fmt.Errorf("audio device %d: %w", id, errNoInputDevice)
		}
		d = devices[id]
	} else {
		for _, candidate := range devices {
			if candidate.MaxInputChannels > 0 && strings.Contains(candidate.Name, selector) {
				d = candidate
				break
			}
		}
		if d == nil {
			return nil, fmt.Errorf("audio device %q: %w", selector, errNoInputDevice)
		}
	}

	if d.MaxInputChannels < 1 {
		return nil, fmt.Errorf("audio device %q has no input channels: %w", d.Name, errNoInputDevice)
	}

	slog.Info("using audio input device", "device", d.Name, "sampleRate", int(d.DefaultSampleRate))

	return d, nil
}

// PrintInputDevices writes a table of the audio input devices.
func PrintInputDevices(w io.Writer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("list audio devices: %w", err)
	}

	fmt.Fprintf(w, "%2s  %-55s  %8s  %10s\n", "ID", "NAME", "CHANNELS", "SAMPLERATE")
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			fmt.Fprintf(w, "%2d  %-55s  %8d  %10d\n", i, d.Name, d.MaxInputChannels, int(d.DefaultSampleRate))
		}
	}

	return nil
}
