package cpulist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	cpulistOnline = "/sys/devices/system/cpu/online"
)

func ListOnlineCPUs() ([]int, error) {
	return parseCPUListFile(cpulistOnline)
}

// CountContiguousOnline returns n such that cores [0, n) are all online.
// The counters are sampled for a prefix of cores, so holes end the range.
func CountContiguousOnline() (int, error) {
	cpus, err := ListOnlineCPUs()
	if err != nil {
		return 0, err
	}
	return contiguousPrefix(cpus), nil
}

func contiguousPrefix(cpus []int) int {
	online := make(map[int]bool, len(cpus))
	for _, cpu := range cpus {
		online[cpu] = true
	}
	n := 0
	for online[n] {
		n++
	}
	return n
}

func parseCPUListFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseCPUList(f)
}

func parseRange(part string) (first, last int, err error) {
	index := strings.IndexByte(part, '-')
	if index == -1 {
		first, err = strconv.Atoi(part)
		return first, first, err
	}

	first, err = strconv.Atoi(part[:index])
	if err != nil {
		return 0, 0, err
	}
	last, err = strconv.Atoi(part[index+1:])
	if err != nil {
		return 0, 0, err
	}
	if last < first {
		return 0, 0, fmt.Errorf("malformed cpu range %q", part)
	}
	return first, last, nil
}

func parseCPUList(r io.Reader) ([]int, error) {
	res := []int{}

	br := bufio.NewScanner(r)
	for br.Scan() {
		line := strings.TrimSpace(br.Text())
		if line == "" {
			continue
		}
		for _, part := range strings.Split(line, ",") {
			first, last, err := parseRange(part)
			if err != nil {
				return nil, err
			}
			for cpu := first; cpu <= last; cpu++ {
				res = append(res, cpu)
			}
		}
	}

	if err := br.Err(); err != nil {
		return nil, err
	}

	return res, nil
}
