package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintRegistration outputs the registration snapshot, dispatching based on the output format configured.
func PrintRegistration(reg schema.RegistrationStatus, cfg *contract.Config) error {
	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, reg)
		}, "Wrote JSON")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"version", "state"}, func(cw *csv.Writer) error {
				for _, ws := range workers(reg) {
					if err := cw.Write([]string{ws.Version, string(ws.State)}); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRegistrationTable(w, reg)
		}, "Wrote registration")
	}
	if err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}
	return nil
}

// workers lists live versions first, newest state first, then retired ones.
func workers(reg schema.RegistrationStatus) []schema.WorkerStatus {
	var out []schema.WorkerStatus
	for _, ws := range []*schema.WorkerStatus{reg.Installing, reg.Waiting, reg.Active} {
		if ws != nil {
			out = append(out, *ws)
		}
	}
	for i := len(reg.Retired) - 1; i >= 0; i-- {
		out = append(out, reg.Retired[i])
	}
	return out
}

func writeRegistrationTable(w io.Writer, reg schema.RegistrationStatus) error {
	list := workers(reg)
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No versions registered.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Version", "State"})
	var data [][]string
	for _, ws := range list {
		data = append(data, []string{ws.Version, contract.GetColorState(ws.State)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
