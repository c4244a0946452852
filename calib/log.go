package calib

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/unixpickle/essentials"
)

// LogName is the conventional name of an amplitude log.
const LogName = "rmse_list.txt"

// WriteLog saves an amplitude vector with one number per
// line.
func WriteLog(path string, v Vector) error {
	var buf bytes.Buffer
	for _, x := range v {
		buf.WriteString(strconv.FormatFloat(x, 'e', 18, 64))
		buf.WriteByte('\n')
	}
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return essentials.AddCtx("write amplitude log", err)
	}
	return nil
}

// ReadLog loads an amplitude vector saved by WriteLog.
// Any whitespace-separated list of numbers is accepted.
func ReadLog(path string) (Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("read amplitude log", err)
	}
	defer f.Close()
	var res Vector
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("read amplitude log: line %d: %v", len(res)+1, err)
			}
			res = append(res, x)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("read amplitude log", err)
	}
	return res, nil
}
