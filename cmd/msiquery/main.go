// Command msiquery runs a single query against an MSI package and
// prints the result, or applies it and rewrites the package in place.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	msigo "github.com/FocuswithJustin/msigo"
)

// CLI is msiquery's entire command surface: a package path and one
// statement in the library's query dialect.
type CLI struct {
	Path  string `arg:"" help:"Path to an MSI package." type:"existingfile"`
	Query string `arg:"" help:"A single SELECT/INSERT/UPDATE/DELETE statement."`
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

	stmt, err := msigo.ParseQuery(c.Query)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	switch q := stmt.(type) {
	case *msigo.Select:
		return printSelect(pkg, q)
	case *msigo.Insert:
		if err := pkg.InsertRows(q); err != nil {
			return err
		}
	case *msigo.Update:
		n, err := pkg.UpdateRows(q)
		if err != nil {
			return err
		}
		fmt.Printf("%d row(s) updated\n", n)
	case *msigo.Delete:
		n, err := pkg.DeleteRows(q)
		if err != nil {
			return err
		}
		fmt.Printf("%d row(s) deleted\n", n)
	default:
		return fmt.Errorf("unsupported statement type %T", stmt)
	}

	return writeBack(pkg, c.Path)
}

func writeBack(pkg *msigo.Package, path string) error {
	if err := pkg.Flush(); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = pkg.WriteTo(out)
	return err
}

func printSelect(pkg *msigo.Package, sel *msigo.Select) error {
	names, err := pkg.SelectColumnNames(sel)
	if err != nil {
		return err
	}
	rows, err := pkg.SelectRows(sel)
	if err != nil {
		return err
	}

	widths := make([]int, len(names))
	for i, n := range names {
		widths[i] = len(n)
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		strs := make([]string, len(row))
		for j, v := range row {
			strs[j] = v.String()
			if len(strs[j]) > widths[j] {
				widths[j] = len(strs[j])
			}
		}
		cells[i] = strs
	}

	printRow(names, widths)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	printRow(rule, widths)
	for _, strs := range cells {
		printRow(strs, widths)
	}
	return nil
}

func printRow(cells []string, widths []int) {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(c)
		for j := len(c); j < widths[i]; j++ {
			b.WriteByte(' ')
		}
		b.WriteString("  ")
	}
	fmt.Println(strings.TrimRight(b.String(), " "))
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("msiquery"),
		kong.Description("Runs a single query against an MSI package."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
