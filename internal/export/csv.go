package export

import (
	"encoding/csv"
	"os"
	"strconv"
)

// CSVSaver writes rows with header run_id,timestamp_ms,equity,drawdown,position.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"run_id", "timestamp_ms", "equity", "drawdown", "position"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.RunID,
			strconv.FormatInt(r.TimestampMs, 10),
			floatStr(r.Equity),
			floatStr(r.Drawdown),
			floatStr(r.Position),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
