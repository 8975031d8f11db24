package player

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"strconv"
)

// omxplayer prints "Current Volume: -6.00dB" on every volume change.
var volumeLine = regexp.MustCompile(`Current Volume:\s*(-?\d+(?:\.\d+)?)\s*dB`)

// ScrapeVolume returns the last volume reported in a player's captured
// output, converted to millibels.
func ScrapeVolume(r io.Reader) (int, bool) {
	var (
		last  int
		found bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := volumeLine.FindAllStringSubmatch(sc.Text(), -1)
		if len(m) == 0 {
			continue
		}
		db, err := strconv.ParseFloat(m[len(m)-1][1], 64)
		if err != nil {
			continue
		}
		last = int(math.Round(db * 100))
		found = true
	}
	return last, found
}
