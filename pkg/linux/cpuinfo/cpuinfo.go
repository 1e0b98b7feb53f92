package cpuinfo

import (
	"bufio"
	"io"
	"os"
	"regexp"
)

const (
	procCPUInfoPath = "/proc/cpuinfo"

	VendorIntel = "GenuineIntel"
)

var (
	// vendor_id       : GenuineIntel
	vendorRgxp = regexp.MustCompile(`^vendor_id\s*: (.*)$`)
	// model name      : Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz
	modelNameRgxp = regexp.MustCompile(`^model name\s*: (.*)$`)
)

type CPU struct {
	Vendor string
	Model  string
}

// HasArchPerfMon reports whether the fixed-function counter MSRs are expected to exist.
func (c *CPU) HasArchPerfMon() bool {
	return c.Vendor == VendorIntel
}

// Describe reports the first processor listed in /proc/cpuinfo.
func Describe() (*CPU, error) {
	f, err := os.Open(procCPUInfoPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (*CPU, error) {
	cpu := &CPU{Vendor: "Unknown CPU vendor", Model: "Unknown CPU model"}
	seenVendor, seenModel := false, false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() && !(seenVendor && seenModel) {
		line := scanner.Text()
		if matches := vendorRgxp.FindStringSubmatch(line); len(matches) == 2 && !seenVendor {
			cpu.Vendor = matches[1]
			seenVendor = true
		}
		if matches := modelNameRgxp.FindStringSubmatch(line); len(matches) == 2 && !seenModel {
			cpu.Model = matches[1]
			seenModel = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cpu, nil
}
