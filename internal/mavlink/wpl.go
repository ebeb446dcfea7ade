package mavlink

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	fp "github.com/tiiuae/flightplanengine/internal/flightplan"
)

const wplHeader = "QGC WPL 120"

// Encode writes commands in the QGC WPL 120 text format, one tab
// separated mission item per line.
func Encode(w io.Writer, commands []fp.Command) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, wplHeader)
	for i, c := range commands {
		current := 0
		if i == 0 {
			current = 1
		}
		autoContinue := 0
		if c.AutoContinue {
			autoContinue = 1
		}
		fields := []string{
			strconv.Itoa(c.Index),
			strconv.Itoa(current),
			strconv.Itoa(int(c.Frame)),
			strconv.Itoa(int(c.Command)),
			formatFloat(c.Param1),
			formatFloat(c.Param2),
			formatFloat(c.Param3),
			formatFloat(c.Param4),
			formatFloat(c.Latitude),
			formatFloat(c.Longitude),
			formatFloat(c.Altitude),
			strconv.Itoa(autoContinue),
		}
		fmt.Fprintln(bw, strings.Join(fields, "\t"))
	}
	return bw.Flush()
}

func Decode(r io.Reader) ([]fp.Command, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("empty mission file")
	}
	if header := strings.TrimSpace(scanner.Text()); header != wplHeader {
		return nil, errors.Errorf("unsupported mission file header %q", header)
	}

	var commands []fp.Command
	for line := 2; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		c, err := decodeLine(text)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", line)
		}
		commands = append(commands, c)
	}
	return commands, scanner.Err()
}

func decodeLine(text string) (fp.Command, error) {
	fields := strings.Fields(text)
	if len(fields) != 12 {
		return fp.Command{}, errors.Errorf("expected 12 fields, got %d", len(fields))
	}

	ints := make([]int, 0, 5)
	for _, i := range []int{0, 1, 2, 3, 11} {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return fp.Command{}, err
		}
		ints = append(ints, v)
	}
	floats := make([]float64, 0, 7)
	for _, f := range fields[4:11] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fp.Command{}, err
		}
		floats = append(floats, v)
	}

	return fp.Command{
		Index:        ints[0],
		Frame:        uint8(ints[2]),
		Command:      uint16(ints[3]),
		Param1:       floats[0],
		Param2:       floats[1],
		Param3:       floats[2],
		Param4:       floats[3],
		Latitude:     floats[4],
		Longitude:    floats[5],
		Altitude:     floats[6],
		AutoContinue: ints[4] == 1,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
