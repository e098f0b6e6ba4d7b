// Command msiinfo prints an MSI package's SummaryInformation properties
// and table schema, similar in spirit to the Windows msiinfo.exe tool.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/alecthomas/kong"

	msigo "github.com/FocuswithJustin/msigo"
)

// CLI is msiinfo's entire command surface.
type CLI struct {
	Path string `arg:"" help:"Path to an MSI package." type:"existingfile"`
	Dump bool   `help:"Also print every table's schema."`
}

var cli CLI

func (c *CLI) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return err
	}
	pkg, err := msigo.Open(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Path, err)
	}

	if err := printSummary(pkg); err != nil {
		return err
	}

	names := pkg.TableNames()
	sort.Strings(names)
	fmt.Printf("\n%d table(s):\n", len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}

	if c.Dump {
		for _, name := range names {
			if err := printSchema(pkg, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(pkg *msigo.Package) error {
	info, err := pkg.SummaryInfo()
	if err != nil {
		return fmt.Errorf("read summary info: %w", err)
	}
	if cp, ok := info.Codepage(); ok {
		fmt.Printf("   Code page: %d (%s)\n", cp.ID(), cp.Name())
	}
	if title, ok := info.Title(); ok {
		fmt.Printf("       Title: %s\n", title)
	}
	if subject, ok := info.Subject(); ok {
		fmt.Printf("     Subject: %s\n", subject)
	}
	if author, ok := info.Author(); ok {
		fmt.Printf("      Author: %s\n", author)
	}
	if arch, ok := info.Arch(); ok {
		fmt.Printf("        Arch: %s\n", arch)
	}
	if id, ok := info.RevisionNumber(); ok {
		fmt.Printf("        GUID: %s\n", id)
	}
	if t, ok := info.CreateTime(); ok {
		fmt.Printf("  Created at: %s\n", t.Format("2006-01-02 15:04:05"))
	}
	if app, ok := info.AppName(); ok {
		fmt.Printf("Created with: %s\n", app)
	}
	if comments, ok := info.Comments(); ok {
		fmt.Printf("    Comments: %s\n", comments)
	}
	return nil
}

func printSchema(pkg *msigo.Package, name string) error {
	tbl, err := pkg.Table(name)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s:\n", name)
	for _, col := range tbl.Columns() {
		marker := ""
		if col.IsPrimaryKey() {
			marker = " PK"
		}
		nullable := ""
		if col.IsNullable() {
			nullable = " NULL"
		}
		fmt.Printf("  %-24s %-10s%s%s\n", col.Name(), col.Type().String(), marker, nullable)
	}
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("msiinfo"),
		kong.Description("Prints an MSI package's summary info and table schema."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
