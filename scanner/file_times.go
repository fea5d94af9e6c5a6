package scanner

import (
	"time"

	"github.com/djherbis/times"
)

type FileTimes struct {
	ChangeTime   string
	CreationTime string
}

// fileTimes reports the timestamps os.FileInfo does not carry. Either field
// is empty when the platform does not track it.
func fileTimes(path string) (FileTimes, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return FileTimes{}, err
	}
	var ft FileTimes
	if ts.HasChangeTime() {
		ft.ChangeTime = ts.ChangeTime().UTC().Format(time.RFC3339)
	}
	if ts.HasBirthTime() {
		ft.CreationTime = ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return ft, nil
}
