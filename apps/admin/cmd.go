package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/storage/database"
)

var (
	gooseRunFunc   = database.RunMigration // mockable
	isTerminalFunc = term.IsTerminal       // mockable

	errHelp          = errors.New("help provided")
	errNotConfirmed  = errors.New("aborted")
	errNothingLoaded = errors.New("no file was ingested")
)

type commandLine struct {
	db  *sql.DB
	svc attendance.ServiceInterface
	in  io.Reader
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  ingest FILE...         - ingest attendance spreadsheets (xlsx, xls, csv)")
	fmt.Fprintln(cli.out, "  stats                  - print overall attendance statistics")
	fmt.Fprintln(cli.out, "  cleanup -min N         - delete records with less than N conducted periods")
	fmt.Fprintln(cli.out, "  clear [-force]         - delete all students, courses and records")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	cleanupCmd := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	cleanupCmd.SetOutput(cli.out)
	cleanupMin := cleanupCmd.Int("min", -1, "The minimum number of conducted periods to keep a record.")

	clearCmd := flag.NewFlagSet("clear", flag.ContinueOnError)
	clearCmd.SetOutput(cli.out)
	clearForce := clearCmd.Bool("force", false, "Do not ask for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "ingest":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.ingest(ctx, args[2:])
	case "stats":
		return cli.stats(ctx)
	case "cleanup":
		if err := cleanupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *cleanupMin < 0 {
			cleanupCmd.Usage()
			return errHelp
		}
		return cli.cleanup(ctx, *cleanupMin)
	case "clear":
		if err := clearCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.clear(ctx, *clearForce)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}

func (cli *commandLine) ingest(ctx context.Context, paths []string) error {
	uploads := make([]attendance.Upload, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func(f *os.File) { _ = f.Close() }(f)
		uploads = append(uploads, attendance.Upload{Filename: path, Content: f})
	}

	var succeeded int
	for _, fr := range cli.svc.Ingest(ctx, uploads...) {
		if !fr.Success {
			fmt.Fprintf(cli.out, "FAIL %s: %s\n", fr.Filename, fr.Error)
			continue
		}
		succeeded++
		fmt.Fprintf(
			cli.out, "OK   %s: %d course(s), %d student(s), %d record(s) created, %d updated, %d skipped\n",
			fr.Filename, fr.Courses, fr.Students, fr.RecordsCreated, fr.RecordsUpdated, fr.RowsSkipped,
		)
	}
	if succeeded == 0 {
		return errNothingLoaded
	}
	return nil
}

func (cli *commandLine) stats(ctx context.Context) error {
	stats, err := cli.svc.OverallStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "students:            %d\n", stats.TotalStudents)
	fmt.Fprintf(cli.out, "courses:             %d\n", stats.TotalCoursesInSystem)
	fmt.Fprintf(cli.out, "records:             %d\n", stats.TotalRecords)
	fmt.Fprintf(cli.out, "below %.0f%%:           %d\n", attendance.LowThreshold, stats.LowAttendanceCount)
	fmt.Fprintf(cli.out, "below %.0f%%:           %d\n", attendance.CriticalThreshold, stats.CriticalAttendance)
	return nil
}

func (cli *commandLine) cleanup(ctx context.Context, minConducted int) error {
	n, err := cli.svc.Cleanup(ctx, minConducted)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d record(s)\n", n)
	return nil
}

func (cli *commandLine) clear(ctx context.Context, force bool) error {
	if !force {
		if !isTerminalFunc(syscall.Stdin) {
			return errors.New("refusing to clear data without confirmation: use -force")
		}
		fmt.Fprint(cli.out, "This deletes ALL students, courses and records. Type 'yes' to continue: ")
		answer, err := bufio.NewReader(cli.in).ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			return errNotConfirmed
		}
	}

	if err := cli.svc.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "all attendance data cleared")
	return nil
}
