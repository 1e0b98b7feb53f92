package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

func Dump(w io.Writer) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		_, err := fmt.Fprintln(w, "unknown")
		return err
	}

	_, err := fmt.Fprintf(w, "%s %s (%s)\n", info.Main.Path, info.Main.Version, info.GoVersion)
	if err != nil {
		return err
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision", "vcs.time", "vcs.modified", "GOARCH", "GOOS":
			_, err = fmt.Fprintf(w, "  %s=%s\n", setting.Key, setting.Value)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
