// Command versiongen prints the module version for release builds, or the
// matching -ldflags value with -ldflags.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pkt.systems/sandpit/internal/version"
)

const versionSymbol = "pkt.systems/sandpit/internal/version.buildVersion"

func main() {
	var ldflags bool
	flag.BoolVar(&ldflags, "ldflags", false, "print an -X flag pinning the version")
	flag.Parse()

	ver := strings.TrimSpace(version.CurrentWithDirty())
	if ver == "" {
		ver = "v0.0.0-unknown"
	}
	if ldflags {
		fmt.Fprintln(os.Stdout, ldflagsFor(ver))
		return
	}
	fmt.Fprintln(os.Stdout, ver)
}

func ldflagsFor(ver string) string {
	return fmt.Sprintf("-X %s=%s", versionSymbol, ver)
}
