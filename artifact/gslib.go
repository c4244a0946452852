package artifact

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteGSLIB writes a square tensor in the GSLIB ASCII
// grid format.
//
// The header holds a title, the number of variables, and
// one name per channel.
// Each following line holds the channel values of one
// cell, with x varying fastest.
func WriteGSLIB(w io.Writer, title string, size, depth int, data []float64) error {
	if len(data) != size*size*depth {
		return fmt.Errorf("write GSLIB: tensor has length %d, expected %d", len(data),
			size*size*depth)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %d %d 1\n%d\n", title, size, size, depth)
	for i := 0; i < depth; i++ {
		fmt.Fprintf(bw, "channel_%d\n", i)
	}
	for i := 0; i < size*size; i++ {
		for j := 0; j < depth; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(data[i*depth+j], 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
