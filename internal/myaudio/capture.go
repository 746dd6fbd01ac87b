package myaudio

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// Source produces captured PCM until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, onData func(pcm []byte)) error
}

// CaptureDevice describes a sound card input.
type CaptureDevice struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// MalgoSource captures 16-bit mono audio from a sound card through miniaudio.
type MalgoSource struct {
	device string
	log    logger.Logger
}

// NewMalgoSource returns a source for the device matching the configured
// name or id. "sysdefault" selects the system default input.
func NewMalgoSource(device string) *MalgoSource {
	return &MalgoSource{
		device: device,
		log:    GetLogger().With(logger.String("source", device)),
	}
}

// backends returns the miniaudio backend for this platform, nil for auto select.
func backends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	}
	return nil
}

// ListCaptureDevices returns the capture devices miniaudio can see.
func ListCaptureDevices() ([]CaptureDevice, error) {
	ctx, err := malgo.InitContext(backends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, captureError(err, "context init")
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, captureError(err, "list devices")
	}

	devices := make([]CaptureDevice, 0, len(infos))
	for i := range infos {
		devices = append(devices, describeDevice(i, &infos[i]))
	}
	return devices, nil
}

func describeDevice(index int, info *malgo.DeviceInfo) CaptureDevice {
	id, err := hexToASCII(info.ID.String())
	if err != nil {
		id = info.ID.String()
	}
	return CaptureDevice{
		Index:     index,
		Name:      info.Name(),
		ID:        strings.TrimRight(id, "\x00"),
		IsDefault: info.IsDefault == 1,
	}
}

// Run opens the device and forwards captured frames to onData until ctx
// is cancelled. onData runs on the audio thread and must not block.
func (s *MalgoSource) Run(ctx context.Context, onData func(pcm []byte)) error {
	malgoCtx, err := malgo.InitContext(backends(), malgo.ContextConfig{}, func(message string) {
		s.log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return captureError(err, "context init")
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return captureError(err, "list devices")
	}

	selected, ok := selectCaptureSource(s.device, infos)
	if !ok {
		return errors.Newf("no capture device matches %q", s.device).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("available", len(infos)).
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = conf.NumChannels
	deviceConfig.Capture.DeviceID = infos[selected].ID.Pointer()
	deviceConfig.SampleRate = conf.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	stopped := make(chan struct{}, 1)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
		Stop: func() {
			select {
			case stopped <- struct{}{}:
			default:
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return captureError(err, "device init")
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return captureError(err, "device start")
	}

	desc := describeDevice(selected, &infos[selected])
	s.log.Info("capture started",
		logger.String("device", desc.Name),
		logger.String("id", desc.ID),
		logger.Int("sample_rate", conf.SampleRate))

	for {
		select {
		case <-ctx.Done():
			_ = device.Stop()
			s.log.Info("capture stopped")
			return nil
		case <-stopped:
			if ctx.Err() != nil {
				continue
			}
			// The device stopped on its own, usually a disconnect. Try once
			// to restart it after a short pause.
			time.Sleep(100 * time.Millisecond)
			if err := device.Start(); err != nil {
				return captureError(err, "device restart")
			}
			s.log.Warn("capture device restarted after unexpected stop")
		}
	}
}

// selectCaptureSource returns the index of the device matching setting.
func selectCaptureSource(setting string, infos []malgo.DeviceInfo) (int, bool) {
	for i := range infos {
		desc := describeDevice(i, &infos[i])
		if matchesDeviceSettings(desc, setting) {
			return i, true
		}
	}
	return 0, false
}

// matchesDeviceSettings checks the decoded id, then the device name.
// "sysdefault" also matches the device miniaudio marks as default.
func matchesDeviceSettings(dev CaptureDevice, setting string) bool {
	if setting == "sysdefault" && dev.IsDefault {
		return true
	}
	return dev.ID == setting || strings.Contains(dev.Name, setting)
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func captureError(err error, op string) error {
	return errors.New(fmt.Errorf("%s: %w", op, err)).
		Component("myaudio").
		Category(errors.CategoryAudioSource).
		Build()
}
