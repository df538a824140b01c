package tty

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// usbLocation resolves the USB bus and device numbers behind a tty node by
// walking up from /sys/class/tty/<name>/device to the first directory that
// carries busnum and devnum. It returns zeros when the port is not USB.
func usbLocation(sysfsRoot, name string) (bus, address int) {
	devicePath := filepath.Join(sysfsRoot, "class", "tty", name, "device")
	resolved, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return 0, 0
	}

	// usb-serial drivers nest the tty one level deeper than cdc-acm
	dir := resolved
	for i := 0; i < 4 && dir != sysfsRoot && dir != "/"; i++ {
		busnum := readSysfsFile(filepath.Join(dir, "busnum"))
		devnum := readSysfsFile(filepath.Join(dir, "devnum"))
		if busnum != "" && devnum != "" {
			b, errB := strconv.Atoi(busnum)
			a, errA := strconv.Atoi(devnum)
			if errB == nil && errA == nil {
				return b, a
			}
			return 0, 0
		}
		dir = filepath.Dir(dir)
	}
	return 0, 0
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "".
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
