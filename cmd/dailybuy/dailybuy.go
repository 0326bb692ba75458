package dailybuy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"dailybuy/src/connectors"
	"dailybuy/src/database"
	"dailybuy/src/handler"
	"dailybuy/src/model"
	"dailybuy/src/repository"
	"dailybuy/src/security"

	"github.com/sirupsen/logrus"
)

// Runner executes one request file and prints the response as JSON.
type Runner struct {
	File string
	Out  io.Writer
	Log  *logrus.Entry
}

func (r *Runner) load(dst any) error {
	if r.File == "" {
		return errors.New("--file is required")
	}
	data, err := os.ReadFile(r.File)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request file: %w", err)
	}
	return nil
}

func (r *Runner) print(status int, resp handler.Response) error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("finished with status %d", status)
	}
	return nil
}

// openDB connects when ENABLE_DB is set, so database sources can be read.
func openDB() error {
	if !database.Enabled() {
		return nil
	}
	if err := database.InitMainDB(); err != nil {
		return err
	}
	return database.InitReadOnlyDB()
}

// DailyBuy runs the daily buy described by the request file. Missing
// credentials are taken from COINBASE_API_*.
func (r *Runner) DailyBuy(ctx context.Context) error {
	var params handler.DailyBuyParams
	if err := r.load(&params); err != nil {
		return err
	}
	if err := openDB(); err != nil {
		return err
	}
	params.Coinbase = params.Coinbase.Or(security.EnvCredentials())

	r.Log.WithField("file", r.File).Info("Running daily buy")
	status, resp := handler.DailyBuy(ctx, params)
	return r.print(status, resp)
}

// Stats prints the cost basis report for the products in the request file.
func (r *Runner) Stats(ctx context.Context) error {
	var params handler.StatsParams
	if err := r.load(&params); err != nil {
		return err
	}
	if err := openDB(); err != nil {
		return err
	}
	params.Coinbase = params.Coinbase.Or(security.EnvCredentials())

	r.Log.WithField("file", r.File).Info("Running crypto stats")
	status, resp := handler.CryptoStats(ctx, params)
	return r.print(status, resp)
}

// Importer loads a CSV of fills into supplemental_fills.
type Importer struct {
	File   string
	Source string
	Log    *logrus.Entry
}

func (i *Importer) Start(ctx context.Context) error {
	if i.File == "" {
		return errors.New("--file is required")
	}
	source := strings.TrimSpace(i.Source)
	if source == "" {
		source = GetConfig().ImportSource
	}
	if !database.Enabled() {
		return errors.New("import needs ENABLE_DB=true")
	}
	if err := database.InitMainDB(); err != nil {
		return err
	}

	f, err := os.Open(i.File)
	if err != nil {
		return fmt.Errorf("open %s: %w", i.File, err)
	}
	defer f.Close()

	fills, err := connectors.ReadFillsCSV(f, source)
	if err != nil {
		return err
	}

	rows := make([]model.SupplementalFill, 0, len(fills))
	for _, fill := range fills {
		if !fill.Size.IsPositive() || !fill.Price.IsPositive() {
			i.Log.WithField("product", fill.ProductID).Warn("Skipping fill without size or price")
			continue
		}
		rows = append(rows, model.NewSupplementalFill(fill, source))
	}

	if err := repository.NewSupplementalFillRepository().WithDB(database.MainDB).CreateBatch(ctx, rows); err != nil {
		return err
	}
	i.Log.WithFields(logrus.Fields{"source": source, "rows": len(rows)}).Info("Import finished")
	return nil
}
