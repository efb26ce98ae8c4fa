// Package license identifies the SPDX license family of a repository by
// keyword-matching the content of its LICENSE file. It does not validate
// full license text and does not call out to any external API.
package license

import (
	"os"
	"path/filepath"
	"strings"
)

// candidateFiles lists the file names checked, in priority order, mirroring
// the common variants projects actually ship.
var candidateFiles = []string{
	"LICENSE", "LICENSE.txt", "LICENSE.md",
	"LICENCE", "LICENCE.txt", "LICENCE.md",
	"COPYING", "COPYING.txt",
}

// maxSniffBytes bounds how much of the license file is read for
// classification; the identifying phrases all appear near the top.
const maxSniffBytes = 2048

// None is returned when no license file is present.
const None = "None"

// Unknown is returned when a license file exists but could not be read.
const Unknown = "Unknown"

// Other is returned when a license file exists but matches none of the
// known keyword fingerprints.
const Other = "Other"

// Detect inspects repoPath for a license file and returns its best-guess
// SPDX-ish family name (e.g. "MIT", "Apache-2.0", "GPL-3.0"), None if no
// license file is present, or Unknown if the file could not be read.
func Detect(repoPath string) string {
	key, _ := DetectFile(repoPath)
	return key
}

// DetectFile is Detect plus the name of the license file that matched,
// empty when no candidate file exists.
func DetectFile(repoPath string) (key, file string) {
	for _, name := range candidateFiles {
		path := filepath.Join(repoPath, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		raw, err := sniff(path)
		if err != nil {
			return Unknown, name
		}
		return classify(strings.ToUpper(string(raw))), name
	}
	return None, ""
}

func sniff(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, maxSniffBytes)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// classify fingerprints the upper-cased license text. Order matters: the
// distinctive full phrases come first because short tokens like "MIT" also
// occur inside unrelated words ("PERMITTED").
func classify(content string) string {
	switch {
	case strings.Contains(content, "GNU AFFERO GENERAL PUBLIC LICENSE"):
		return "AGPL-3.0"
	case strings.Contains(content, "GNU LESSER GENERAL PUBLIC LICENSE"):
		return "LGPL"
	case strings.Contains(content, "GNU GENERAL PUBLIC LICENSE"):
		switch {
		case strings.Contains(content, "VERSION 3"):
			return "GPL-3.0"
		case strings.Contains(content, "VERSION 2"):
			return "GPL-2.0"
		default:
			return "GPL"
		}
	case strings.Contains(content, "APACHE LICENSE"):
		return "Apache-2.0"
	case strings.Contains(content, "MOZILLA PUBLIC LICENSE"):
		return "MPL-2.0"
	case strings.Contains(content, "REDISTRIBUTION AND USE IN SOURCE AND BINARY FORMS"):
		return "BSD"
	case strings.Contains(content, "MIT LICENSE"),
		strings.Contains(content, "PERMISSION IS HEREBY GRANTED, FREE OF CHARGE"):
		return "MIT"
	case strings.Contains(content, "THIS IS FREE AND UNENCUMBERED SOFTWARE"):
		return "Unlicense"
	case strings.Contains(content, "ISC LICENSE"):
		return "ISC"
	default:
		return Other
	}
}
