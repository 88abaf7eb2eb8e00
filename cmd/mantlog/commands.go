package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/storage"
)

func runAdd(ctx context.Context, w io.Writer, svc *record.Service, e record.Entry) error {
	res, err := svc.Append(ctx, e)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(w, "recorded %q by %s at %s (%d records)\n",
		res.Record.Task, res.Record.Operator, res.Record.Timestamp, res.Count)
	fmt.Fprintf(w, "backup: %s\n", res.Backup)
	return nil
}

func runList(ctx context.Context, w io.Writer, svc *record.Service, month string) error {
	d, err := svc.Filter(ctx, month)
	if err != nil {
		return describe(err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(record.Columns(), "\t"))
	for _, r := range d.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Timestamp, r.Task, r.Operator)
	}
	return tw.Flush()
}

func runMonths(ctx context.Context, w io.Writer, svc *record.Service) error {
	months, err := svc.Months(ctx)
	if err != nil {
		return describe(err)
	}
	for _, m := range months {
		fmt.Fprintln(w, m)
	}
	return nil
}

// runExport writes the download workbook to output, or to the download file
// name in the working directory.
func runExport(ctx context.Context, w io.Writer, svc *record.Service, month, output string) error {
	dl, err := svc.Export(ctx, month)
	if err != nil {
		return describe(err)
	}
	if output == "" {
		output = dl.Filename
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	out, err := storage.NewLocalStorage(filepath.Dir(abs))
	if err != nil {
		return err
	}
	if err := out.Write(ctx, filepath.Base(abs), dl.Data); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d records to %s\n", dl.Count, abs)
	return nil
}

func runBackups(ctx context.Context, w io.Writer, backups record.BackupLister) error {
	paths, err := backups.List(ctx)
	if err != nil {
		return describe(err)
	}
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
	return nil
}

func runOptions(w io.Writer, svc *record.Service) error {
	opts := svc.Options()
	fmt.Fprintln(w, "tasks:")
	for _, t := range opts.Tasks {
		fmt.Fprintf(w, "  %s\n", t)
	}
	fmt.Fprintln(w, "operators:")
	for _, o := range opts.Operators {
		fmt.Fprintf(w, "  %s\n", o)
	}
	return nil
}

// describe flattens validation details into the error text shown on the
// terminal.
func describe(err error) error {
	var ce *cerr.Error
	if !errors.As(err, &ce) {
		return err
	}
	details := ce.DetailMessages()
	if len(details) == 0 {
		return err
	}
	return fmt.Errorf("%s: %s", ce.Msg, strings.Join(details, "; "))
}
