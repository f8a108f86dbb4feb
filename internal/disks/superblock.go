package disks

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// minStringLen matches the default run length of strings(1).
const minStringLen = 4

// SuperblockSerials extracts the printable string table embedded in the
// array superblock. Every run of at least four printable characters is
// returned; the table holds the serial of each assigned disk. A missing or
// unreadable superblock yields nil.
func SuperblockSerials(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	return printableStrings(f)
}

func printableStrings(r io.Reader) []string {
	var (
		out  []string
		seen = make(map[string]bool)
		run  bytes.Buffer
	)

	flush := func() {
		if run.Len() >= minStringLen {
			s := strings.TrimSpace(run.String())
			if len(s) >= minStringLen && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		run.Reset()
	}

	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		if (b >= 0x20 && b <= 0x7e) || b == '\t' {
			run.WriteByte(b)
			continue
		}
		flush()
	}
	flush()

	return out
}

// CacheSerials returns the values of every cacheId* key in the array disk
// configuration.
func CacheSerials(path string) []string {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Loose:                     true,
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, path)
	if err != nil {
		return nil
	}

	var serials []string
	for _, section := range cfg.Sections() {
		for _, key := range section.Keys() {
			if !strings.Contains(strings.ToLower(key.Name()), "cacheid") {
				continue
			}
			if v := strings.Trim(strings.TrimSpace(key.String()), `"`); v != "" {
				serials = append(serials, v)
			}
		}
	}
	return serials
}
