//go:build !linux

package hostfs

import (
	"fmt"
	"os"
)

// deviceSize has no generic implementation outside Linux; non-regular
// inputs on other platforms must report their size through Stat().
func deviceSize(f *os.File) (int64, error) {
	return 0, fmt.Errorf("hostfs: device size probing not supported on this platform")
}
