package usb

import (
	"fmt"
	"time"

	"github.com/allbin/loraterm"
	"github.com/google/gousb"
)

// settleTime is how long a reset device typically needs to re-enumerate.
const settleTime = 2 * time.Second

// Reset performs a USB port reset of d. This can recover a bridge that has
// stopped answering bulk transfers. It waits for the device to re-enumerate
// before returning.
func (b *Backend) Reset(d loraterm.Descriptor) error {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == d.Bus && desc.Address == d.Address
	})
	if len(devs) == 0 {
		if err != nil {
			return classify(err)
		}
		return loraterm.ErrDeviceNotFound
	}
	dev := devs[0]
	defer dev.Close()
	for _, extra := range devs[1:] {
		extra.Close()
	}

	b.log.Info().Str("device", d.String()).Msg("resetting device")
	if err := dev.Reset(); err != nil {
		return fmt.Errorf("reset %s: %w", d, classify(err))
	}

	time.Sleep(settleTime)
	return nil
}
